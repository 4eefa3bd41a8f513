package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

var testCfg = Config{
	Host:     "smtp.example.com",
	Port:     587,
	User:     "support@example.com",
	Password: "app-password",
	FromName: "Loan App Support",
	BaseURL:  "https://loans.example.com",
}

var jane = Credentials{Email: "jane@x.com", FirstName: "Jane", UserID: "u-1", Password: "48213377"}

func TestDispatcherSendsCredentials(t *testing.T) {
	s := &fakeSender{}
	d := NewDispatcherWithSender(testCfg, s, zap.NewNop().Sugar())
	d.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, d.NotifyCredentials(context.Background(), jane))
	require.Len(t, s.sent, 1)

	m := s.sent[0]
	assert.Equal(t, []string{"jane@x.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{Subject}, m.GetHeader("Subject"))
	from := m.GetHeader("From")
	require.Len(t, from, 1)
	assert.Contains(t, from[0], "Loan App Support")
	assert.Contains(t, from[0], "support@example.com")
}

func TestRenderEmbedsFields(t *testing.T) {
	d := NewDispatcherWithSender(testCfg, &fakeSender{}, nil)
	d.now = func() time.Time { return time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC) }

	body, err := d.Render(jane)
	require.NoError(t, err)
	for _, want := range []string{"Jane", "jane@x.com", "u-1", "48213377", "https://loans.example.com/login", "2031"} {
		assert.Contains(t, body, want)
	}
}

func TestRenderEscapesNames(t *testing.T) {
	d := NewDispatcherWithSender(testCfg, &fakeSender{}, nil)
	body, err := d.Render(Credentials{FirstName: "<script>x</script>"})
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestDispatcherNotConfigured(t *testing.T) {
	cfg := testCfg
	cfg.Password = ""
	s := &fakeSender{}
	d := NewDispatcherWithSender(cfg, s, nil)

	err := d.NotifyCredentials(context.Background(), jane)
	assert.ErrorIs(t, err, ErrMailNotConfigured)
	assert.Empty(t, s.sent)
}

func TestDispatcherWrapsSMTPErrors(t *testing.T) {
	d := NewDispatcherWithSender(testCfg, &fakeSender{err: errors.New("535 auth failed")}, nil)

	err := d.NotifyCredentials(context.Background(), jane)
	require.ErrorIs(t, err, ErrDispatch)
	assert.Contains(t, err.Error(), "535")
}

type stubNotifier struct {
	got Credentials
	err error
}

func (s *stubNotifier) NotifyCredentials(_ context.Context, c Credentials) error {
	s.got = c
	return s.err
}

func postJSON(t *testing.T, h http.HandlerFunc, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/send-email", strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestSendEmailHandler(t *testing.T) {
	logger := zap.NewNop().Sugar()
	payload := `{"email":"jane@x.com","firstName":"Jane","userId":"u-1","password":"48213377"}`

	t.Run("success", func(t *testing.T) {
		n := &stubNotifier{}
		rec := postJSON(t, NewHandler(n, "", logger).SendEmail, payload, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())
		assert.Equal(t, jane, n.got)
	})

	t.Run("bad body", func(t *testing.T) {
		rec := postJSON(t, NewHandler(&stubNotifier{}, "", logger).SendEmail, `{`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Failed to send email")
	})

	t.Run("delivery failure", func(t *testing.T) {
		n := &stubNotifier{err: ErrDispatch}
		rec := postJSON(t, NewHandler(n, "", logger).SendEmail, payload, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var out errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, "Failed to send email", out.Error)
		assert.NotEmpty(t, out.Details)
	})

	t.Run("api key required", func(t *testing.T) {
		h := NewHandler(&stubNotifier{}, "secret", logger).SendEmail
		rec := postJSON(t, h, payload, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = postJSON(t, h, payload, http.Header{"X-Api-Key": {"secret"}})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestClient(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got Credentials
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"success":true}`))
		}))
		defer srv.Close()

		require.NoError(t, NewClient(srv.URL, "k", srv.Client()).NotifyCredentials(context.Background(), jane))
		assert.Equal(t, jane, got)
	})

	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Failed to send email","details":"smtp down"}`))
		}))
		defer srv.Close()

		err := NewClient(srv.URL, "", srv.Client()).NotifyCredentials(context.Background(), jane)
		require.ErrorIs(t, err, ErrDispatch)
		assert.Contains(t, err.Error(), "Failed to send email")
	})

	t.Run("error field on 200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":"quota exceeded"}`))
		}))
		defer srv.Close()

		err := NewClient(srv.URL, "", srv.Client()).NotifyCredentials(context.Background(), jane)
		require.ErrorIs(t, err, ErrDispatch)
		assert.Contains(t, err.Error(), "quota exceeded")
	})
}
