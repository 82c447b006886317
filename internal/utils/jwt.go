package utils // package utils provides helper functions for token creation and hashing

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// SessionToken is the signed, opaque value handed to the browser after a
// successful login.  The console only checks its presence; the claims are
// there for whoever needs to know who signed in.
type SessionToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewSessionToken signs an HS256 JWT carrying the credential id (sub) and
// email.
func NewSessionToken(secret, credentialID, email string, ttlMin int) (SessionToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":   credentialID,
		"email": email,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, errors.Wrap(err, "sign session token")
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

func parseSession(secret, raw string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(err, "parse session token")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}

// SessionClaims parses a token issued by NewSessionToken and returns its
// subject and email.  Expired tokens are rejected.
func SessionClaims(secret, raw string) (sub, email string, err error) {
	claims, err := parseSession(secret, raw)
	if err != nil {
		return "", "", err
	}
	sub, _ = claims["sub"].(string)
	email, _ = claims["email"].(string)
	return sub, email, nil
}

// SessionExpiry returns when a valid, unexpired session token stops being
// accepted.
func SessionExpiry(secret, raw string) (time.Time, error) {
	claims, err := parseSession(secret, raw)
	if err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errors.New("session token without expiry")
	}
	return exp.Time, nil
}
