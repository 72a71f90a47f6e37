package service

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/domain"
)

// palette is the pool of cursor/identity colors handed out to guests, in
// join order.
var palette = []string{
	"#e74c3c", "#3498db", "#2ecc71", "#f39c12",
	"#9b59b6", "#1abc9c", "#e67e22", "#34495e",
}

// TokenService issues and validates guest session tokens. There are no
// accounts: a token is minted from a display name alone and carries the
// generated user id and assigned color, which is all the gateway needs.
type TokenService struct {
	jwtSecret []byte
	jwtExpiry time.Duration
	issued    atomic.Uint64 // drives round-robin color assignment
}

// NewTokenService creates a TokenService. jwtSecretKey must be non-empty.
func NewTokenService(jwtSecretKey string, jwtExpiryHours int) (*TokenService, error) {
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24
	}
	return &TokenService{
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// Issue mints a token for a new guest user.
func (s *TokenService) Issue(displayName string) (string, domain.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return "", domain.User{}, ErrInvalidInput
	}
	if len(displayName) > 64 {
		displayName = displayName[:64]
	}

	user := domain.User{
		ID:    uuid.NewString(),
		Name:  displayName,
		Color: palette[s.issued.Add(1)%uint64(len(palette))],
	}

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"name":    user.Name,
		"color":   user.Color,
		"exp":     time.Now().Add(s.jwtExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		logrus.WithError(err).Error("Failed to sign guest token")
		return "", domain.User{}, ErrInternalServer
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "name": user.Name}).Info("Guest token issued")
	return token, user, nil
}

// Validate parses a token and reconstructs the guest user it was issued
// for.
func (s *TokenService) Validate(tokenStr string) (domain.User, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return domain.User{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.User{}, ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	name, _ := claims["name"].(string)
	color, _ := claims["color"].(string)
	if userID == "" || name == "" {
		return domain.User{}, ErrInvalidToken
	}
	return domain.User{ID: userID, Name: name, Color: color}, nil
}
