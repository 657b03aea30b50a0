package auth

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/CineMatch/internal/domain"
)

const testSecret = "0123456789abcdef-test"

var fixedNow = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, issuer string, now time.Time) *TokenService {
	t.Helper()
	s, err := NewTokenService(Config{Secret: testSecret, Issuer: issuer, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return s
}

func TestNewTokenServiceRejectsShortSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenService(Config{Secret: "short"}); err == nil {
		t.Fatalf("expected error for short secret")
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	s := newService(t, "cinematch", fixedNow)
	want := domain.Participant{ID: "u-1", Name: "Ada"}
	tok, err := s.Issue(want)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != want {
		t.Fatalf("participant = %+v, want %+v", got, want)
	}
}

func sign(t *testing.T, method jwt.SigningMethod, key any, c jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, c).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	s := newService(t, "cinematch", fixedNow)
	valid := func() claims {
		return claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "cinematch",
				ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
			},
			UserID: "u-1",
			Name:   "Ada",
		}
	}
	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(fixedNow.Add(-time.Minute))
	noExp := valid()
	noExp.ExpiresAt = nil
	wrongIssuer := valid()
	wrongIssuer.Issuer = "someone-else"
	noID := valid()
	noID.UserID = ""

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "expired", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{name: "missing exp", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), noExp)},
		{name: "wrong issuer", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer)},
		{name: "wrong secret", token: sign(t, jwt.SigningMethodHS256, []byte("another-secret-entirely"), valid())},
		{name: "wrong alg", token: sign(t, jwt.SigningMethodHS512, []byte(testSecret), valid())},
		{name: "no identity", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), noID)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Verify(tt.token)
			if !errors.Is(err, domain.ErrUnauthorized) {
				t.Fatalf("err = %v, want %v", err, domain.ErrUnauthorized)
			}
		})
	}
}

func TestVerifyFallsBackToSubject(t *testing.T) {
	t.Parallel()

	s := newService(t, "", fixedNow)
	c := claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "sub-7",
		ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
	}, Name: "Sam"}
	got, err := s.Verify(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ID != "sub-7" {
		t.Fatalf("id = %q, want %q", got.ID, "sub-7")
	}
}

func TestGateCredentialSources(t *testing.T) {
	t.Parallel()

	s := newService(t, "", fixedNow)
	tok, err := s.Issue(domain.Participant{ID: "u-2", Name: "Bo"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	g := NewGate(s)

	q := httptest.NewRequest("GET", "/api/ws/signal?token="+tok, nil)
	if p, err := g.Authenticate(q); err != nil || p.ID != "u-2" {
		t.Fatalf("query credential = (%+v, %v)", p, err)
	}

	h := httptest.NewRequest("GET", "/api/ws/signal", nil)
	h.Header.Set("Authorization", "bearer "+tok)
	if p, err := g.Authenticate(h); err != nil || p.ID != "u-2" {
		t.Fatalf("header credential = (%+v, %v)", p, err)
	}

	none := httptest.NewRequest("GET", "/api/ws/signal", nil)
	none.Header.Set("Authorization", "Basic "+strings.Repeat("x", 8))
	if _, err := g.Authenticate(none); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want %v", err, domain.ErrUnauthorized)
	}
}
