package execution

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

// jwtTransport signs every outgoing request with a fresh short-lived
// token, as engine endpoints behind authrpc require.
type jwtTransport struct {
	secret []byte
	base   http.RoundTripper
}

func (t *jwtTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := newAuthToken(t.secret, time.Now())
	if err != nil {
		return nil, errors.Wrap(err, "could not sign engine auth token")
	}
	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(authed)
}

// newAuthToken issues an HS256 token carrying only the issue time; the
// engine rejects tokens older than its freshness window.
func newAuthToken(secret []byte, issuedAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(issuedAt)}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func newAuthClient(secret []byte) *http.Client {
	return &http.Client{Transport: &jwtTransport{secret: secret, base: http.DefaultTransport}}
}
