package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/littlwoop/saiko-app-sub000/internal/shared/apierrors"
)

// Mode selects how bearer tokens are checked.
type Mode string

const (
	// ModeClerk verifies Clerk-issued JWTs against the configured JWKS endpoint.
	ModeClerk Mode = "clerk"
	// ModeNoop trusts the bearer token verbatim as the participant id. Local runs and tests only.
	ModeNoop Mode = "noop"
)

// UserIDHeader carries the verified participant id into handlers.
const UserIDHeader = "X-User-ID"

// Config captures the inputs required to initialize a Verifier.
type Config struct {
	Mode     Mode
	JWKSURL  string
	Audience string
	Issuer   string
	// Logger receives background JWKS refresh failures. Defaults to slog.Default.
	Logger *slog.Logger
}

// Principal is the verified caller behind a request.
type Principal struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// Verifier turns a bearer token into a Principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

var (
	errMissingAuthHeader = errors.New("authorization header missing")
	errInvalidAuthHeader = errors.New("authorization header is malformed")
)

type principalKey struct{}

// Middleware rejects requests without a valid bearer token. Any client supplied X-User-ID is
// replaced by the verified subject so handlers have one source of identity. A nil verifier
// disables the check, leaving identity to an upstream gateway.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				next.ServeHTTP(w, r)
				return
			}
			r.Header.Del(UserIDHeader)

			token, err := bearerToken(r)
			if err != nil {
				unauthorized(w, r, err)
				return
			}
			p, err := verifier.Verify(r.Context(), token)
			if err != nil {
				unauthorized(w, r, err)
				return
			}

			r.Header.Set(UserIDHeader, p.UserID)
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	apierrors.Write(w, http.StatusUnauthorized, err.Error(), middleware.GetReqID(r.Context()))
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errMissingAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", errInvalidAuthHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errInvalidAuthHeader
	}
	return token, nil
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the verified caller from ctx.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserID returns the caller id for a request, preferring the verified principal over the header.
func UserID(r *http.Request) string {
	if p, ok := PrincipalFrom(r.Context()); ok && p.UserID != "" {
		return p.UserID
	}
	return strings.TrimSpace(r.Header.Get(UserIDHeader))
}

// NewVerifier constructs the Verifier for cfg.Mode.
func NewVerifier(cfg Config) (Verifier, error) {
	switch cfg.Mode {
	case ModeClerk:
		return newClerkVerifier(cfg)
	case ModeNoop:
		return noopVerifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}
