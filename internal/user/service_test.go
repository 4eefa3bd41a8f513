package user

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MohamedNusaif/Loan-Management/internal/credential"
	"github.com/MohamedNusaif/Loan-Management/internal/notify"
	"github.com/MohamedNusaif/Loan-Management/internal/outbox"
	outboxentity "github.com/MohamedNusaif/Loan-Management/internal/outbox/entity"
	outboxrepo "github.com/MohamedNusaif/Loan-Management/internal/outbox/repo"
	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
	userrepo "github.com/MohamedNusaif/Loan-Management/internal/user/repo"
	"github.com/MohamedNusaif/Loan-Management/pkg/database/databasetest"
)

type captureNotifier struct {
	sent []notify.Credentials
	err  error
	// during runs inside the send, before it returns.
	during func(ctx context.Context)
}

func (c *captureNotifier) NotifyCredentials(ctx context.Context, cred notify.Credentials) error {
	c.sent = append(c.sent, cred)
	if c.during != nil {
		during := c.during
		c.during = nil
		during(ctx)
	}
	return c.err
}

type fixture struct {
	svc      *UserService
	db       *sqlx.DB
	users    *userrepo.SQLRepo
	outbox   *outboxrepo.SQLRepo
	notifier *captureNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := databasetest.NewSQLite(t)
	f := &fixture{
		db:       db,
		users:    userrepo.NewSQLRepo(db),
		outbox:   outboxrepo.NewSQLRepo(db),
		notifier: &captureNotifier{},
	}
	f.svc = NewUserService(f.users, f.outbox, f.notifier, credential.BcryptHasher{Cost: 4}, nil)
	return f
}

func validInput() RegisterInput {
	return RegisterInput{
		FirstName:  "Jane",
		LastName:   "Doe",
		Email:      "jane@x.com",
		Phone:      "0770000000",
		Address:    "1 Main St",
		NICNumber:  "199000000000",
		UserType:   "user",
		Occupation: "Engineer",
		Company:    "Acme",
	}
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)
	require.Len(t, f.notifier.sent, 1)

	sent := f.notifier.sent[0]
	assert.Equal(t, id, sent.UserID)
	assert.Equal(t, "jane@x.com", sent.Email)
	assert.True(t, credential.Valid(sent.Password))

	stored, err := f.users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, sent.Password, stored.PasswordHash)
	assert.True(t, stored.MustResetPassword)
	assert.Equal(t, stored.CreatedAt, stored.UpdatedAt)

	u, err := f.svc.Authenticate(ctx, "jane@x.com", sent.Password)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	unsent, err := f.outbox.ListUnsent(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, unsent)
}

func TestRelayCannotRotateDuringRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	relay := outbox.NewRelay(outbox.Config{}, f.outbox, f.users, f.notifier, credential.BcryptHasher{Cost: 4}, nil)

	var drained outbox.Result
	f.notifier.during = func(ctx context.Context) {
		var err error
		drained, err = relay.Drain(ctx)
		require.NoError(t, err)
	}

	_, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, outbox.Result{}, drained)
	require.Len(t, f.notifier.sent, 1)

	_, err = f.svc.Authenticate(ctx, "jane@x.com", f.notifier.sent[0].Password)
	assert.NoError(t, err)
}

func TestRegisterAgentDropsEmploymentFields(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.UserType = "agent"

	id, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	u, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAgent, u.UserType)
	assert.Nil(t, u.Occupation)
	assert.Nil(t, u.Company)
}

func TestRegisterDefaultsToUser(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.UserType = ""

	id, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	u, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleUser, u.UserType)
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
		msg    string
	}{
		{"first name", func(in *RegisterInput) { in.FirstName = "  " }, "firstName", "First name is required"},
		{"email missing", func(in *RegisterInput) { in.Email = "" }, "email", "Email is required"},
		{"email malformed", func(in *RegisterInput) { in.Email = "jane@x" }, "email", "Enter a valid email address"},
		{"nic", func(in *RegisterInput) { in.NICNumber = "" }, "nicNumber", "NIC/Passport is required"},
		{"occupation for user", func(in *RegisterInput) { in.Occupation = "" }, "occupation", "Occupation is required"},
		{"company for user", func(in *RegisterInput) { in.Company = "" }, "company", "Company is required"},
		{"unknown role", func(in *RegisterInput) { in.UserType = "admin" }, "userType", "User type must be user or agent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			tc.mutate(&in)

			_, err := f.svc.Register(context.Background(), in)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.msg, verr.Fields[tc.field])
			assert.Empty(t, f.notifier.sent)
		})
	}
}

func TestAgentNeedsNoEmployment(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.UserType = "agent"
	in.Occupation, in.Company = "", ""
	assert.NoError(t, f.svc.Validate(&in))
}

func TestRegisterNotifyFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = notify.ErrDispatch
	ctx := context.Background()

	id, err := f.svc.Register(ctx, validInput())
	require.ErrorIs(t, err, ErrNotifyFailed)
	require.NotEmpty(t, id)

	_, err = f.users.GetByID(ctx, id)
	assert.NoError(t, err)

	// the credential that failed to go out still opens the account
	require.Len(t, f.notifier.sent, 1)
	u, err := f.svc.Authenticate(ctx, "jane@x.com", f.notifier.sent[0].Password)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	pending, err := f.outbox.ListUnsent(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].UserID)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, outboxentity.StatusPending, pending[0].Status)
}

func TestRegisterIsNotIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id1, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)
	id2, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	dups, err := f.users.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.Len(t, dups, 2)

	// each credential opens its own account
	u, err := f.svc.Authenticate(ctx, "jane@x.com", f.notifier.sent[1].Password)
	require.NoError(t, err)
	assert.Equal(t, id2, u.ID)
}

func TestRegisterStoreFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Close())

	_, err := f.svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrCreateFailed)
	assert.Empty(t, f.notifier.sent)
}

func TestAuthenticateFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, "", "x")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	_, err = f.svc.Authenticate(ctx, "jane@x.com", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, errUnknown := f.svc.Authenticate(ctx, "nobody@x.com", "12345678")
	_, errWrong := f.svc.Authenticate(ctx, "jane@x.com", "wrong-pass")
	assert.ErrorIs(t, errUnknown, ErrBadCredentials)
	assert.Equal(t, errUnknown, errWrong)
}

func TestRotatePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)
	issued := f.notifier.sent[0].Password

	_, err = f.svc.RotatePassword(ctx, id, issued, "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = f.svc.RotatePassword(ctx, id, "00000000", "a-much-better-one")
	assert.ErrorIs(t, err, ErrBadCredentials)

	u, err := f.svc.RotatePassword(ctx, id, issued, "a-much-better-one")
	require.NoError(t, err)
	assert.False(t, u.MustResetPassword)

	_, err = f.svc.Authenticate(ctx, "jane@x.com", issued)
	assert.ErrorIs(t, err, ErrBadCredentials)
	got, err := f.svc.Authenticate(ctx, "jane@x.com", "a-much-better-one")
	require.NoError(t, err)
	assert.False(t, got.MustResetPassword)
}
