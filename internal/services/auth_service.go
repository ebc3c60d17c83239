package services

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles registration, login and token validation.
type AuthService struct {
	userRepo  repositories.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *log.Entry
}

// NewAuthService creates a new AuthService. A non-positive ttl defaults to 24 hours.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  ttl,
		logger:    log.WithField("component", "auth"),
	}
}

// RegisterUser hashes the password and stores a new customer account.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	existing, err := s.userRepo.GetByUsername(ctx, user.Username)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if existing != nil {
		return apperrors.Conflict(fmt.Sprintf("username '%s' already taken", user.Username))
	}
	existing, err = s.userRepo.GetByEmail(ctx, user.Email)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if existing != nil {
		return apperrors.Conflict(fmt.Sprintf("email '%s' already registered", user.Email))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashed)
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	// Self-registration never grants admin.
	user.Role = models.RoleUser

	if err := s.userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

// LoginUser authenticates a user and returns a signed JWT carrying the user id and role.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil || user == nil {
		return "", apperrors.Unauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", apperrors.Unauthorized("invalid credentials")
	}

	role := user.Role
	if role == "" {
		role = models.RoleUser
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(role),
		"exp":      now.Add(s.tokenTTL).Unix(),
		"iat":      now.Unix(),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		s.logger.WithError(err).Debug("token validation failed")
		return nil, apperrors.Unauthorized("invalid token")
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, apperrors.Unauthorized("invalid token")
}

// CallerFromClaims extracts the caller identity from validated claims.
func CallerFromClaims(claims jwt.MapClaims) (Caller, error) {
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return Caller{}, apperrors.Unauthorized("token has no user")
	}
	role, _ := claims["role"].(string)
	if role != string(models.RoleAdmin) {
		role = string(models.RoleUser)
	}
	return Caller{UserID: userID, Role: models.Role(role)}, nil
}
