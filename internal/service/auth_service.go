package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/proctorhq/proctor-backend/internal/config"
	"github.com/proctorhq/proctor-backend/internal/model"
)

// Common auth errors.
var (
	ErrSessionAlreadyActive = errors.New("another device is already logged in, contact faculty to reset")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrSessionSuperseded    = errors.New("login session is no longer active")
)

// Claims extends JWT standard claims with the caller's role. Subject holds
// the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role model.Role `json:"role"`
	Name string     `json:"name,omitempty"`
}

// UserID parses the subject back into a uuid.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// AuthService handles login, JWT issuance, and student single-device sessions.
type AuthService struct {
	cfg  *config.Config
	rdb  *redis.Client
	auth Authenticator
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, auth Authenticator) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, auth: auth}
}

// HashPassword hashes a password with the configured bcrypt cost.
// Default cost is 6 for high-concurrency performance. Adjustable via BCRYPT_COST env.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// Login authenticates the credentials and issues a JWT. Student logins also
// register a single-device session in Redis: a second login while one is
// active is rejected rather than silently superseding it.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	profile, err := s.auth.Authenticate(ctx, req.Email, req.Password, req.Role)
	if err != nil {
		return nil, err
	}

	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   profile.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		Role: req.Role,
		Name: profile.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	if req.Role == model.RoleStudent {
		if err := s.registerStudentSession(ctx, profile.ID, jti); err != nil {
			return nil, err
		}
	}

	return &model.LoginResponse{Token: signed, User: *profile, Role: req.Role}, nil
}

// registerStudentSession claims the student's single-device slot. The slot
// expires with the JWT.
func (s *AuthService) registerStudentSession(ctx context.Context, studentID uuid.UUID, jti string) error {
	key := config.CacheKey.StudentSessionKey(studentID.String())

	existing, err := s.rdb.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("check session: %w", err)
	}
	if existing != "" {
		return ErrSessionAlreadyActive
	}

	if err := s.rdb.Set(ctx, key, jti, s.cfg.JWTExpiry).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// ValidateToken parses and verifies a JWT, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateStudentSession checks that the token still owns the student's
// single-device slot. A reset slot or a newer login invalidates older tokens.
func (s *AuthService) ValidateStudentSession(ctx context.Context, claims *Claims) error {
	jti, err := s.rdb.Get(ctx, config.CacheKey.StudentSessionKey(claims.Subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionSuperseded
		}
		return fmt.Errorf("check session: %w", err)
	}
	if jti != claims.ID {
		return ErrSessionSuperseded
	}
	return nil
}

// Logout releases a student's single-device slot. Faculty logout is purely
// client-side token disposal.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if claims.Role != model.RoleStudent {
		return nil
	}
	return s.rdb.Del(ctx, config.CacheKey.StudentSessionKey(claims.Subject)).Err()
}

// ResetStudentSession frees a student's slot so they can log in again on a
// new device. Faculty-only operation.
func (s *AuthService) ResetStudentSession(ctx context.Context, studentID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.StudentSessionKey(studentID.String())).Err()
}
