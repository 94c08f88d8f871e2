package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/noah-isme/schoolbot/pkg/errors"
)

// InviteService mints and verifies signed deep links that let a newly added
// teacher open the bot and register in one tap.
type InviteService struct {
	secret      []byte
	ttl         time.Duration
	botUsername string
}

// NewInviteService constructs an InviteService.
func NewInviteService(secret, botUsername string, ttl time.Duration) *InviteService {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &InviteService{secret: []byte(secret), ttl: ttl, botUsername: botUsername}
}

type inviteClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// CreateLink returns a deep link carrying a signed invite for the username.
func (s *InviteService) CreateLink(username string) (string, error) {
	now := time.Now().UTC()
	claims := inviteClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign invite: %w", err)
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", s.botUsername, token), nil
}

// Verify checks an invite token from a /start payload and returns the invited
// username.
func (s *InviteService) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &inviteClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrForbidden.Code, apperrors.ErrForbidden.Status, "invite link is invalid or expired")
	}

	claims, ok := parsed.Claims.(*inviteClaims)
	if !ok || !parsed.Valid || claims.Username == "" {
		return "", apperrors.Clone(apperrors.ErrForbidden, "invite link is invalid or expired")
	}
	return claims.Username, nil
}
