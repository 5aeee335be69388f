package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lshigami/formresponses/config"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingCredential = errors.New("missing bearer credential")
	ErrInvalidCredential = errors.New("invalid bearer credential")
)

// Identity is who presented the credential. Subject is empty when the token
// was accepted by shape only.
type Identity struct {
	Subject string
	UserID  *uint
}

type Verifier interface {
	// Verify checks an Authorization header value.
	Verify(authorization string) (Identity, error)
}

type verifier struct {
	secret []byte
}

// NewVerifier returns a verifier that checks HS256 signatures when a secret
// is configured. Without one, any "Bearer <token>" header is accepted.
func NewVerifier(cfg *config.Config) Verifier {
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET not set: bearer tokens are accepted without signature verification")
	}
	return &verifier{secret: []byte(cfg.Auth.JWTSecret)}
}

// BearerToken extracts the token from a "Bearer <token>" header. The scheme
// is matched case-insensitively.
func BearerToken(authorization string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(authorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func (v *verifier) Verify(authorization string) (Identity, error) {
	tokenString, ok := BearerToken(authorization)
	if !ok {
		return Identity{}, ErrMissingCredential
	}
	if len(v.secret) == 0 {
		return Identity{}, nil
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidCredential
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidCredential
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, ErrInvalidCredential
	}

	id := Identity{Subject: sub}
	if uid, ok := claims["uid"].(float64); ok && uid >= 0 {
		u := uint(uid)
		id.UserID = &u
	}
	return id, nil
}
