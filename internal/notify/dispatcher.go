// Package notify delivers the credentials email, either in-process over SMTP
// or by calling the notification endpoint of another instance.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var (
	// ErrMailNotConfigured means SMTP credentials are missing; nothing can be sent.
	ErrMailNotConfigured = errors.New("email credentials not configured")
	// ErrDispatch wraps every delivery failure.
	ErrDispatch = errors.New("failed to send credentials email")
)

// Credentials is the payload of a credentials notification.
type Credentials struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	UserID    string `json:"userId"`
	Password  string `json:"password"`
}

// Notifier delivers a credentials notification.
type Notifier interface {
	NotifyCredentials(ctx context.Context, c Credentials) error
}

// Sender is the part of *gomail.Dialer the dispatcher needs.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	FromName string
	// BaseURL of the web application; the email links to BaseURL + "/login".
	BaseURL string
}

// Dispatcher renders the credentials email and hands it to the SMTP relay.
type Dispatcher struct {
	cfg    Config
	sender Sender
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewDispatcher(cfg Config, logger *zap.SugaredLogger) *Dispatcher {
	return NewDispatcherWithSender(cfg, gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password), logger)
}

func NewDispatcherWithSender(cfg Config, sender Sender, logger *zap.SugaredLogger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Dispatcher{cfg: cfg, sender: sender, logger: logger, now: time.Now}
}

// Configured reports whether SMTP credentials are present.
func (d *Dispatcher) Configured() bool {
	return d.cfg.User != "" && d.cfg.Password != ""
}

// Render returns the HTML body for c.
func (d *Dispatcher) Render(c Credentials) (string, error) {
	return renderCredentials(credentialsView{
		FirstName: c.FirstName,
		Email:     c.Email,
		UserID:    c.UserID,
		Password:  c.Password,
		LoginURL:  d.cfg.BaseURL + "/login",
		Year:      d.now().Year(),
	})
}

// NotifyCredentials sends one email. There is no retry here; the outbox
// relay owns retries.
func (d *Dispatcher) NotifyCredentials(ctx context.Context, c Credentials) error {
	if !d.Configured() {
		return ErrMailNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	body, err := d.Render(c)
	if err != nil {
		return fmt.Errorf("%w: render: %v", ErrDispatch, err)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", d.cfg.User, d.cfg.FromName)
	m.SetHeader("To", c.Email)
	m.SetHeader("Subject", Subject)
	m.SetBody("text/html", body)

	if err := d.sender.DialAndSend(m); err != nil {
		d.logger.Warnw("smtp delivery failed", "to", c.Email, "user_id", c.UserID, "err", err)
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	d.logger.Infow("credentials email sent", "to", c.Email, "user_id", c.UserID)
	return nil
}
