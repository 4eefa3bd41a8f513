// Package outbox retries credential notifications that did not go out at
// registration time.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/credential"
	"github.com/MohamedNusaif/Loan-Management/internal/notify"
	"github.com/MohamedNusaif/Loan-Management/internal/outbox/entity"
	outboxrepo "github.com/MohamedNusaif/Loan-Management/internal/outbox/repo"
	userentity "github.com/MohamedNusaif/Loan-Management/internal/user/entity"
	userrepo "github.com/MohamedNusaif/Loan-Management/internal/user/repo"
)

// CredentialStore is the slice of the user gateway the relay writes to.
type CredentialStore interface {
	UpdatePassword(ctx context.Context, id, hash string, mustReset bool, updatedAt string) error
}

type Config struct {
	Schedule    string
	MaxAttempts int
	BatchSize   int
	// SendingTimeout is how long a sending message may stay untouched before
	// the relay treats its attempt as lost and takes it over.
	SendingTimeout time.Duration
}

// Result summarises one drain pass.
type Result struct {
	Sent    int
	Retried int
	Failed  int
}

// Relay drains pending outbox messages. Each attempt issues a fresh
// credential, so the plaintext never has to be persisted.
type Relay struct {
	cfg      Config
	outbox   outboxrepo.Repository
	users    CredentialStore
	notifier notify.Notifier
	hasher   credential.Hasher
	generate func() (string, error)
	logger   *zap.SugaredLogger
	now      func() time.Time

	cron *cron.Cron
}

func NewRelay(cfg Config, outbox outboxrepo.Repository, users CredentialStore, notifier notify.Notifier, hasher credential.Hasher, logger *zap.SugaredLogger) *Relay {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.SendingTimeout <= 0 {
		cfg.SendingTimeout = 10 * time.Minute
	}
	if hasher == nil {
		hasher = credential.BcryptHasher{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Relay{
		cfg:      cfg,
		outbox:   outbox,
		users:    users,
		notifier: notifier,
		hasher:   hasher,
		generate: credential.Generate,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Drain runs one pass over the pending messages.
func (r *Relay) Drain(ctx context.Context) (Result, error) {
	var res Result
	msgs, err := r.outbox.ListUnsent(ctx, r.cfg.MaxAttempts, r.cfg.BatchSize)
	if err != nil {
		return res, err
	}
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if m.Status == entity.StatusSending && !r.stale(m) {
			continue
		}
		claimed, err := r.outbox.Claim(ctx, m, r.stamp())
		if err != nil {
			return res, fmt.Errorf("outbox %s: %w", m.ID, err)
		}
		if !claimed {
			continue
		}
		status, sendErr := r.deliver(ctx, m)
		lastErr := ""
		if sendErr != nil {
			lastErr = sendErr.Error()
			r.logger.Warnw("outbox delivery failed", "id", m.ID, "user_id", m.UserID, "attempt", m.Attempts+1, "err", sendErr)
		}
		if err := r.outbox.RecordAttempt(ctx, m.ID, status, lastErr, r.stamp()); err != nil {
			return res, fmt.Errorf("outbox %s: %w", m.ID, err)
		}
		switch status {
		case entity.StatusSent:
			res.Sent++
		case entity.StatusFailed:
			res.Failed++
		default:
			res.Retried++
		}
	}
	if len(msgs) > 0 {
		r.logger.Infow("outbox drained", "sent", res.Sent, "retried", res.Retried, "failed", res.Failed)
	}
	return res, nil
}

func (r *Relay) deliver(ctx context.Context, m *entity.Message) (entity.Status, error) {
	err := r.rotateAndSend(ctx, m)
	switch {
	case err == nil:
		return entity.StatusSent, nil
	case m.Attempts+1 >= r.cfg.MaxAttempts, errors.Is(err, errUserGone):
		return entity.StatusFailed, err
	default:
		return entity.StatusPending, err
	}
}

var errUserGone = errors.New("user no longer exists")

// stale reports whether a sending message has been held longer than
// SendingTimeout.
func (r *Relay) stale(m *entity.Message) bool {
	at, err := time.Parse(userentity.TimeLayout, m.UpdatedAt)
	if err != nil {
		return true
	}
	return r.now().Sub(at) >= r.cfg.SendingTimeout
}

func (r *Relay) rotateAndSend(ctx context.Context, m *entity.Message) error {
	pw, err := r.generate()
	if err != nil {
		return err
	}
	hash, err := r.hasher.Hash(pw)
	if err != nil {
		return err
	}
	if err := r.users.UpdatePassword(ctx, m.UserID, hash, true, r.stamp()); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return fmt.Errorf("%w: %v", errUserGone, err)
		}
		return fmt.Errorf("store credential: %w", err)
	}
	return r.notifier.NotifyCredentials(ctx, notify.Credentials{
		Email:     m.Email,
		FirstName: m.FirstName,
		UserID:    m.UserID,
		Password:  pw,
	})
}

func (r *Relay) stamp() string { return r.now().Format(userentity.TimeLayout) }

// Start schedules Drain. Overlapping runs are skipped.
func (r *Relay) Start() error {
	clog := cronLogger{r.logger}
	c := cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	if _, err := c.AddFunc(r.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := r.Drain(ctx); err != nil {
			r.logger.Errorw("outbox drain failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("outbox schedule %q: %w", r.cfg.Schedule, err)
	}
	r.cron = c
	c.Start()
	r.logger.Infow("outbox relay started", "schedule", r.cfg.Schedule)
	return nil
}

// Stop halts the schedule and waits for a running drain to finish.
func (r *Relay) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

type cronLogger struct{ l *zap.SugaredLogger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "err", err)...)
}
