package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MohamedNusaif/Loan-Management/internal/credential"
	"github.com/MohamedNusaif/Loan-Management/internal/notify"
	"github.com/MohamedNusaif/Loan-Management/internal/outbox/entity"
	userentity "github.com/MohamedNusaif/Loan-Management/internal/user/entity"
	userrepo "github.com/MohamedNusaif/Loan-Management/internal/user/repo"
)

type memOutbox struct {
	msgs []*entity.Message
}

func (m *memOutbox) Create(_ context.Context, msg *entity.Message) error {
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *memOutbox) ListUnsent(_ context.Context, maxAttempts, limit int) ([]*entity.Message, error) {
	var out []*entity.Message
	for _, msg := range m.msgs {
		unsent := msg.Status == entity.StatusPending || msg.Status == entity.StatusSending
		if unsent && msg.Attempts < maxAttempts && len(out) < limit {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memOutbox) Claim(_ context.Context, c *entity.Message, updatedAt string) (bool, error) {
	for _, msg := range m.msgs {
		if msg.ID == c.ID && msg.Status == c.Status && msg.UpdatedAt == c.UpdatedAt {
			msg.Status, msg.UpdatedAt = entity.StatusSending, updatedAt
			c.Status, c.UpdatedAt = msg.Status, msg.UpdatedAt
			return true, nil
		}
	}
	return false, nil
}

func (m *memOutbox) RecordAttempt(_ context.Context, id string, status entity.Status, lastErr, updatedAt string) error {
	for _, msg := range m.msgs {
		if msg.ID == id {
			msg.Attempts++
			msg.Status = status
			msg.LastError = lastErr
			msg.UpdatedAt = updatedAt
			return nil
		}
	}
	return errors.New("missing")
}

type memUsers struct {
	hashes map[string]string
	err    error
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string, mustReset bool, _ string) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.hashes[id]; !ok {
		return userrepo.ErrNotFound
	}
	m.hashes[id] = hash
	return nil
}

type recordingNotifier struct {
	sent []notify.Credentials
	err  error
}

func (r *recordingNotifier) NotifyCredentials(_ context.Context, c notify.Credentials) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, c)
	return nil
}

func newFixture(n *recordingNotifier, maxAttempts int) (*Relay, *memOutbox, *memUsers) {
	ob := &memOutbox{msgs: []*entity.Message{
		{ID: "m1", UserID: "u1", Email: "jane@x.com", FirstName: "Jane", Status: entity.StatusPending},
	}}
	users := &memUsers{hashes: map[string]string{"u1": "old"}}
	r := NewRelay(Config{MaxAttempts: maxAttempts}, ob, users, n, credential.BcryptHasher{Cost: 4}, nil)
	return r, ob, users
}

func TestDrainRotatesCredentialAndMarksSent(t *testing.T) {
	n := &recordingNotifier{}
	r, ob, users := newFixture(n, 5)

	res, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 1}, res)

	require.Len(t, n.sent, 1)
	sent := n.sent[0]
	assert.True(t, credential.Valid(sent.Password))
	assert.Equal(t, "u1", sent.UserID)
	assert.NotEqual(t, "old", users.hashes["u1"])
	assert.True(t, credential.BcryptHasher{}.Verify(users.hashes["u1"], sent.Password))

	assert.Equal(t, entity.StatusSent, ob.msgs[0].Status)
	assert.Equal(t, 1, ob.msgs[0].Attempts)

	// nothing left to do
	res, err = r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestDrainKeepsPendingUntilLimit(t *testing.T) {
	n := &recordingNotifier{err: notify.ErrDispatch}
	r, ob, _ := newFixture(n, 2)

	res, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Retried: 1}, res)
	assert.Equal(t, entity.StatusPending, ob.msgs[0].Status)
	assert.Contains(t, ob.msgs[0].LastError, "failed to send")

	res, err = r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)
	assert.Equal(t, entity.StatusFailed, ob.msgs[0].Status)
	assert.Equal(t, 2, ob.msgs[0].Attempts)
}

func TestDrainFailsWhenUserMissing(t *testing.T) {
	n := &recordingNotifier{}
	r, ob, users := newFixture(n, 5)
	delete(users.hashes, "u1")

	res, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)
	assert.Equal(t, entity.StatusFailed, ob.msgs[0].Status)
	assert.Empty(t, n.sent)
}

func TestDrainRetriesStoreErrors(t *testing.T) {
	n := &recordingNotifier{}
	r, ob, users := newFixture(n, 5)
	users.err = errors.New("dial tcp 127.0.0.1:5432: connection refused")

	res, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Retried: 1}, res)
	assert.Equal(t, entity.StatusPending, ob.msgs[0].Status)
	assert.Equal(t, 1, ob.msgs[0].Attempts)
	assert.Contains(t, ob.msgs[0].LastError, "connection refused")
	assert.Empty(t, n.sent)

	users.err = nil
	res, err = r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 1}, res)
	require.Len(t, n.sent, 1)
}

func TestDrainLeavesHeldMessagesAlone(t *testing.T) {
	n := &recordingNotifier{}
	r, ob, users := newFixture(n, 5)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ob.msgs[0].Status = entity.StatusSending
	ob.msgs[0].UpdatedAt = now.Add(-time.Minute).Format(userentity.TimeLayout)

	res, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, n.sent)
	assert.Equal(t, "old", users.hashes["u1"])
	assert.Equal(t, entity.StatusSending, ob.msgs[0].Status)

	// an attempt that never settled is taken over once it goes stale
	now = now.Add(r.cfg.SendingTimeout)
	res, err = r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 1}, res)
	assert.Equal(t, entity.StatusSent, ob.msgs[0].Status)
}

func TestDrainSkipsMessagesClaimedElsewhere(t *testing.T) {
	n := &recordingNotifier{}
	r, ob, _ := newFixture(n, 5)
	r.outbox = &racingOutbox{memOutbox: ob}

	res, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, n.sent)
}

// racingOutbox lets another worker claim each message between list and claim.
type racingOutbox struct {
	*memOutbox
}

func (r *racingOutbox) Claim(ctx context.Context, c *entity.Message, updatedAt string) (bool, error) {
	stolen := *c
	if _, err := r.memOutbox.Claim(ctx, &stolen, "other-worker"); err != nil {
		return false, err
	}
	return r.memOutbox.Claim(ctx, c, updatedAt)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	r, _, _ := newFixture(&recordingNotifier{}, 5)
	r.cfg.Schedule = "not a schedule"
	assert.Error(t, r.Start())
	r.Stop()
}

func TestStartStop(t *testing.T) {
	r, _, _ := newFixture(&recordingNotifier{}, 5)
	require.NoError(t, r.Start())
	r.Stop()
}
