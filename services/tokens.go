package services

import (
	"fmt"
	"time"

	"github.com/Kariqs/farmmarket-api/models"
	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 30 * 24 * time.Hour

// Tokens signs and verifies session JWTs.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(user models.User) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"name":    user.Name,
		"role":    user.Role,
		"image":   user.Image,
		"iat":     now.Unix(),
		"exp":     now.Add(t.ttl).Unix(),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry and returns the session it carries.
func (t *Tokens) Parse(raw string) (models.Session, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Session{}, fmt.Errorf("%w: unexpected claims", ErrUnauthorized)
	}

	id, ok := claims["user_id"].(float64)
	if !ok || id < 1 {
		return models.Session{}, fmt.Errorf("%w: token has no user", ErrUnauthorized)
	}

	session := models.Session{ID: uint(id)}
	session.Email, _ = claims["email"].(string)
	session.Name, _ = claims["name"].(string)
	session.Role, _ = claims["role"].(string)
	session.Image, _ = claims["image"].(string)
	if !models.IsValidRole(session.Role) {
		return models.Session{}, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, session.Role)
	}
	return session, nil
}
