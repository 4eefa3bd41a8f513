package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	loanentity "github.com/MohamedNusaif/Loan-Management/internal/loan/entity"
	"github.com/MohamedNusaif/Loan-Management/internal/session"
	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

type stubLoans struct {
	lastStatus string
	lastCaller entity.PublicView
	err        error
}

func (s *stubLoans) Applications(_ context.Context, caller entity.PublicView, status string, _ int) ([]*loanentity.Application, error) {
	s.lastCaller, s.lastStatus = caller, status
	if s.err != nil {
		return nil, s.err
	}
	return []*loanentity.Application{{ID: "a1", UserID: caller.ID, Amount: decimal.NewFromInt(500), Status: loanentity.StatusNew}}, nil
}

func (s *stubLoans) Payments(context.Context, string, int) ([]*loanentity.Payment, error) {
	return nil, nil
}

type stubUsers struct{}

func (stubUsers) ListByRole(_ context.Context, role entity.Role, _ int) ([]*entity.User, error) {
	return []*entity.User{{ID: "c1", Email: "c1@x.com", UserType: role, PasswordHash: "secret"}}, nil
}

func serve(t *testing.T, h http.HandlerFunc, claims *session.Claims) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(session.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func claimsFor(id string, role entity.Role) *session.Claims {
	c := &session.Claims{Role: role, Email: id + "@x.com"}
	c.Subject = id
	return c
}

func TestUserDashboard(t *testing.T) {
	loans := &stubLoans{}
	h := NewHandler(loans, stubUsers{}, zap.NewNop().Sugar())

	rec := serve(t, h.User, claimsFor("u1", entity.RoleUser))
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.JSONEq(t, `[]`, string(out["payments"]))
	assert.Contains(t, string(out["applications"]), `"a1"`)
	assert.Equal(t, "u1", loans.lastCaller.ID)
	assert.Equal(t, "", loans.lastStatus)
}

func TestAgentDashboard(t *testing.T) {
	loans := &stubLoans{}
	h := NewHandler(loans, stubUsers{}, zap.NewNop().Sugar())

	rec := serve(t, h.Agent, claimsFor("ag1", entity.RoleAgent))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new", loans.lastStatus)
	assert.Contains(t, rec.Body.String(), `"c1@x.com"`)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestDashboardStoreError(t *testing.T) {
	h := NewHandler(&stubLoans{err: errors.New("db down")}, stubUsers{}, zap.NewNop().Sugar())
	rec := serve(t, h.User, claimsFor("u1", entity.RoleUser))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
