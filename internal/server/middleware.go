package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

// AccountHeader carries the account ID when no JWT secret is configured.
const AccountHeader = "X-Account-ID"

type accountCtxKey struct{}

// AccountFromContext returns the account ID stored by [AccountMiddleware].
func AccountFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountCtxKey{}).(string)
	return id, ok && id != ""
}

// WithAccount returns a copy of ctx carrying accountID.
func WithAccount(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountCtxKey{}, accountID)
}

// AccountResolver makes sure an authenticated identity has an account row.
//
// Implemented by [repositories.AccountRepository].
type AccountResolver interface {
	Ensure(ctx context.Context, id, name string) (*models.Account, error)
}

// AccountMiddleware resolves the caller's account and stores its ID in the request context.
//
// With a secret, callers must present an HS256 bearer token whose subject is the account ID.
// Without one, the X-Account-ID header is trusted as is. Either way the account is created
// on first sight. Requests without a usable identity get 401.
func AccountMiddleware(accounts AccountResolver, secret []byte, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				id  string
				err error
			)
			if len(secret) > 0 {
				id, err = accountFromBearer(r.Header.Get("Authorization"), secret)
			} else {
				id = strings.TrimSpace(r.Header.Get(AccountHeader))
				if id == "" {
					err = fmt.Errorf("%w: missing %s header", shared.ErrNotAuthenticated, AccountHeader)
				}
			}
			if err != nil {
				logger.Debug("rejected request", "path", r.URL.Path, "error", err)
				writeError(w, err)
				return
			}

			if _, err := accounts.Ensure(r.Context(), id, id); err != nil {
				logger.Error("failed to resolve account", "account", id, "error", err)
				writeError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), id)))
		})
	}
}

func accountFromBearer(header string, secret []byte) (string, error) {
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return "", fmt.Errorf("%w: missing bearer token", shared.ErrNotAuthenticated)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", shared.ErrInvalidToken)
	}
	return claims.Subject, nil
}

// IssueToken signs an HS256 token whose subject is accountID, valid for ttl.
func IssueToken(secret []byte, accountID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: jwt_secret is not set", shared.ErrMissingConfig)
	}
	if accountID == "" {
		return "", fmt.Errorf("%w: account", shared.ErrMissingArgument)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        shared.GenerateID(),
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "movieweb",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// LoggingMiddleware logs one line per request with its status and latency.
func LoggingMiddleware(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"duration", time.Since(start).Round(time.Microsecond),
			)
		})
	}
}

// RecoverMiddleware turns handler panics into 500 responses.
func RecoverMiddleware(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.Error("handler panic", "path", r.URL.Path, "panic", v)
					writeError(w, fmt.Errorf("panic: %v", v))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
