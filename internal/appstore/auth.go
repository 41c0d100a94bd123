package appstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenAudience = "appstoreconnect-v1"
	tokenLifetime = 20 * time.Minute
	tokenLeeway   = time.Minute
)

// tokenSource signs and caches ES256 bearer tokens.
type tokenSource struct {
	keyID    string
	issuerID string
	key      any
	now      func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(keyID, issuerID string, pemKey []byte, now func() time.Time) (*tokenSource, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("appstore: parse private key: %w", err)
	}
	return &tokenSource{keyID: keyID, issuerID: issuerID, key: key, now: now}, nil
}

// Token returns a cached token while it has more than a minute left.
func (ts *tokenSource) Token() (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	if ts.token != "" && now.Add(tokenLeeway).Before(ts.expires) {
		return ts.token, nil
	}

	expires := now.Add(tokenLifetime)
	claims := jwt.RegisteredClaims{
		Issuer:    ts.issuerID,
		Audience:  jwt.ClaimStrings{tokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = ts.keyID

	signed, err := token.SignedString(ts.key)
	if err != nil {
		return "", fmt.Errorf("appstore: sign token: %w", err)
	}
	ts.token = signed
	ts.expires = expires
	return signed, nil
}
