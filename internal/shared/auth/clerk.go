package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	jwksRefreshInterval = 10 * time.Minute
	clockSkew           = 5 * time.Second
)

var errMissingSubject = errors.New("token missing subject claim")

// clerkVerifier checks Clerk session tokens against a refreshing JWKS.
type clerkVerifier struct {
	jwks   *keyfunc.JWKS
	parser *jwt.Parser
}

func newClerkVerifier(cfg Config) (Verifier, error) {
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("clerk JWKS URL is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshInterval:   jwksRefreshInterval,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks refresh failed", slog.String("url", cfg.JWKSURL), slog.Any("error", err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS: %w", err)
	}
	return newClerkVerifierWithKeys(jwks, cfg.Audience, cfg.Issuer), nil
}

func newClerkVerifierWithKeys(jwks *keyfunc.JWKS, audience, issuer string) *clerkVerifier {
	options := []jwt.ParserOption{
		jwt.WithLeeway(clockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	}
	if audience != "" {
		options = append(options, jwt.WithAudience(audience))
	}
	if issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	return &clerkVerifier{jwks: jwks, parser: jwt.NewParser(options...)}
}

func (v *clerkVerifier) Verify(_ context.Context, token string) (Principal, error) {
	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, v.jwks.Keyfunc); err != nil {
		return Principal{}, fmt.Errorf("token verification failed: %w", err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Principal{}, errMissingSubject
	}

	p := Principal{UserID: subject}
	p.SessionID, _ = claims["sid"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}
	return p, nil
}
