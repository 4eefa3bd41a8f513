package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/dashboard"
	"github.com/MohamedNusaif/Loan-Management/internal/document"
	"github.com/MohamedNusaif/Loan-Management/internal/loan"
	"github.com/MohamedNusaif/Loan-Management/internal/notify"
	"github.com/MohamedNusaif/Loan-Management/internal/session"
	"github.com/MohamedNusaif/Loan-Management/internal/user"
	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs each request at debug level, and at warn level
// when the handler answered with a 5xx.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			log := logger.Debugw
			if status >= http.StatusInternalServerError {
				log = logger.Warnw
			}
			log("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			// HSTS only over TLS
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			// responses carry session data
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}

// Deps are the handlers the router mounts.
type Deps struct {
	Logger      *zap.SugaredLogger
	CORSOrigins []string
	// Ping reports store health for GET /health. Optional.
	Ping func(ctx context.Context) error

	Sessions  *session.Manager
	Users     *user.Handler
	Session   *session.Handler
	Notify    *notify.Handler
	Loans     *loan.Handler
	Dashboard *dashboard.Handler
	Documents *document.Handler
}

// RegisterRoutes builds the HTTP surface.
func RegisterRoutes(d Deps) http.Handler {
	logger := d.Logger
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ping(ctx); err != nil {
				logger.Warnw("health check failed", "err", err)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	authenticated := d.Sessions.Authenticated(logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.Users.Register)
			r.Post("/login", d.Users.Login)
			r.Post("/logout", d.Session.Logout)
			r.With(authenticated).Post("/password", d.Users.ChangePassword)
		})
		r.With(authenticated).Get("/session", d.Session.Current)
		r.Post("/send-email", d.Notify.SendEmail)

		r.Route("/dashboard", func(r chi.Router) {
			r.With(d.Sessions.Gate(logger, entity.RoleUser)).Get("/user", d.Dashboard.User)
			r.With(d.Sessions.Gate(logger, entity.RoleAgent)).Get("/agent", d.Dashboard.Agent)
		})

		r.Mount("/loans", d.Loans.Routes(d.Sessions))

		if d.Documents != nil {
			r.With(d.Sessions.Gate(logger)).Post("/documents/upload-url", d.Documents.UploadURL)
		}
	})

	return r
}
