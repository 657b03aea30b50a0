package auth

import (
	"net/http"
	"strings"

	"github.com/dkeye/CineMatch/internal/domain"
)

// TokenQueryParam carries the credential on WebSocket handshakes, where
// browsers cannot set headers.
const TokenQueryParam = "token"

type Verifier interface {
	Verify(token string) (domain.Participant, error)
}

// Gate authenticates a request before any upgrade or handler runs.
type Gate struct {
	verifier Verifier
}

func NewGate(v Verifier) *Gate { return &Gate{verifier: v} }

// Authenticate reads the credential from the token query parameter or the
// Authorization bearer header, query first.
func (g *Gate) Authenticate(r *http.Request) (domain.Participant, error) {
	return g.verifier.Verify(Credential(r))
}

func Credential(r *http.Request) string {
	if tok := strings.TrimSpace(r.URL.Query().Get(TokenQueryParam)); tok != "" {
		return tok
	}
	return BearerToken(r.Header.Get("Authorization"))
}

func BearerToken(header string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
