package jwt

import (
	"fmt"
	"time"

	jwtgo "github.com/dgrijalva/jwt-go"
)

const (
	// SubjectSession marks tokens that authenticate a user.
	SubjectSession = "session"
	// SubjectMedia marks tokens that grant read access to one media key.
	SubjectMedia = "media"
)

// Claims carried by every token the server issues.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Admin bool   `json:"admin,omitempty"`
	// Key is the media key a media token grants access to.
	Key string `json:"key,omitempty"`
	jwtgo.StandardClaims
}

// Create signs claims with HS256
func Create(claims Claims, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("empty signing secret")
	}
	token := jwtgo.NewWithClaims(jwtgo.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Validate checks the signature and expiration of token
func Validate(token, secret string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwtgo.ParseWithClaims(token, claims, func(t *jwtgo.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtgo.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Expiry returns the unix expiration for a token issued now with ttl.
func Expiry(now time.Time, ttl time.Duration) int64 {
	return now.Add(ttl).Unix()
}
