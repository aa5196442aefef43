package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/littlwoop/saiko-app-sub000/internal/shared/apierrors"
)

func TestMiddleware_NoopVerifierSetsPrincipal(t *testing.T) {
	verifier, err := NewVerifier(Config{Mode: ModeNoop})
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}

	var gotHeader, gotUser string
	handler := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(UserIDHeader)
		gotUser = UserID(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer user-42")
	req.Header.Set(UserIDHeader, "spoofed")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if gotHeader != "user-42" || gotUser != "user-42" {
		t.Fatalf("expected user-42 in header and context, got %q / %q", gotHeader, gotUser)
	}
}

func TestMiddleware_RejectsMissingOrMalformedHeader(t *testing.T) {
	verifier, _ := NewVerifier(Config{Mode: ModeNoop})
	handler := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not be reached")
	}))

	for _, header := range []string{"", "Token abc", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
		var body apierrors.ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Code != "unauthorized" {
			t.Fatalf("header %q: expected unauthorized envelope, got %+v (%v)", header, body, err)
		}
	}
}

func TestMiddleware_NilVerifierTrustsGatewayHeader(t *testing.T) {
	var got string
	handler := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserID(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, " user-7 ")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "user-7" {
		t.Fatalf("expected user-7, got %q", got)
	}
}

func TestNewVerifier_UnsupportedMode(t *testing.T) {
	if _, err := NewVerifier(Config{Mode: "basic"}); err == nil {
		t.Fatalf("expected error for unsupported mode")
	}
	if _, err := NewVerifier(Config{Mode: ModeClerk}); err == nil {
		t.Fatalf("expected error when clerk JWKS URL is missing")
	}
}

func TestClerkVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwks := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		"kid-1": keyfunc.NewGivenRSA(&key.PublicKey, keyfunc.GivenKeyOptions{Algorithm: jwt.SigningMethodRS256.Alg()}),
	})
	verifier := newClerkVerifierWithKeys(jwks, "saiko", "https://clerk.example")

	sign := func(claims jwt.MapClaims) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "kid-1"
		signed, err := tok.SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return signed
	}
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	tests := []struct {
		name    string
		claims  jwt.MapClaims
		wantErr bool
	}{
		{name: "valid", claims: jwt.MapClaims{"sub": "user_1", "sid": "sess_1", "aud": "saiko", "iss": "https://clerk.example", "exp": exp.Unix()}},
		{name: "wrong audience", claims: jwt.MapClaims{"sub": "user_1", "aud": "other", "iss": "https://clerk.example", "exp": exp.Unix()}, wantErr: true},
		{name: "expired", claims: jwt.MapClaims{"sub": "user_1", "aud": "saiko", "iss": "https://clerk.example", "exp": time.Now().Add(-time.Hour).Unix()}, wantErr: true},
		{name: "missing subject", claims: jwt.MapClaims{"aud": "saiko", "iss": "https://clerk.example", "exp": exp.Unix()}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := verifier.Verify(context.Background(), sign(tc.claims))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got principal %+v", p)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if p.UserID != "user_1" || p.SessionID != "sess_1" || !p.ExpiresAt.Equal(exp) {
				t.Fatalf("unexpected principal %+v", p)
			}
		})
	}
}
