package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"toko/internal/apperr"
	"toko/internal/models"
	"toko/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// Identity is who is calling, as established by the auth middleware.
type Identity struct {
	UserID string
	Role   models.Role
}

// IsAdmin reports whether the caller may act on orders it does not own.
func (i Identity) IsAdmin() bool { return i.Role.IsAdmin() }

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which JWT is valid
	logger     *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, logger *slog.Logger) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour,
		logger:     logger,
	}
}

// RegisterUser registers a new customer, hashes their password, and saves them to the database.
// Staff roles are never granted through registration.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	if existingUser, err := s.userRepo.GetByUsername(ctx, user.Username); err == nil && existingUser != nil {
		return fmt.Errorf("%w: username '%s' already taken", apperr.ErrPrecondition, user.Username)
	}
	if existingUser, err := s.userRepo.GetByEmail(ctx, user.Email); err == nil && existingUser != nil {
		return fmt.Errorf("%w: email '%s' already registered", apperr.ErrPrecondition, user.Email)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)
	user.Role = models.RoleUser

	if err := s.userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthenticated)

// LoginUser authenticates a user and returns a JWT token if successful.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil || user == nil {
		return "", errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", errInvalidCredentials
	}
	return s.IssueToken(user)
}

// IssueToken signs an HS256 token carrying the user's id and role.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"exp":      now.Add(s.tokenDurat).Unix(),
		"iat":      now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
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
		s.logger.Debug("token validation failed", "error", err)
		return nil, fmt.Errorf("%w: invalid token: %v", apperr.ErrUnauthenticated, err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("%w: invalid token", apperr.ErrUnauthenticated)
}

// Lookup resolves a user id to the identity stored for it. The role is always read from
// the store, not from the token, so a demoted user loses admin rights immediately.
func (s *AuthService) Lookup(ctx context.Context, userID string) (Identity, error) {
	if userID == "" {
		return Identity{}, fmt.Errorf("%w: token has no user", apperr.ErrUnauthenticated)
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: unknown user", apperr.ErrUnauthenticated)
		}
		return Identity{}, err
	}
	return Identity{UserID: user.ID, Role: user.Role}, nil
}
