package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/repository"
)

const refreshTokenTTL = 7 * 24 * time.Hour

// TokenStore keeps opaque refresh tokens.
type TokenStore interface {
	Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (uuid.UUID, error)
	Delete(ctx context.Context, token string) error
}

type redisTokenStore struct {
	redis *redis.Client
}

// NewRedisTokenStore stores refresh tokens under refresh:<token>.
func NewRedisTokenStore(redisClient *redis.Client) TokenStore {
	return &redisTokenStore{redis: redisClient}
}

func (r *redisTokenStore) Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	return r.redis.Set(ctx, "refresh:"+token, userID.String(), ttl).Err()
}

func (r *redisTokenStore) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	v, err := r.redis.Get(ctx, "refresh:"+token).Result()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(v)
}

func (r *redisTokenStore) Delete(ctx context.Context, token string) error {
	return r.redis.Del(ctx, "refresh:"+token).Err()
}

type AuthService struct {
	users  UserStore
	tokens TokenStore
	jwt    *middleware.JWTAuth
	log    *logger.Logger
	cost   int
}

func NewAuthService(users UserStore, tokens TokenStore, jwt *middleware.JWTAuth, log *logger.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		jwt:    jwt,
		log:    log.With("component", "auth"),
		cost:   12,
	}
}

// Register creates a user. A taken email or username is DuplicateIdentity.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	fieldErrors := make(map[string]string)
	if err := validateStruct(req); err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		for k, v := range ve.Fields {
			fieldErrors[k] = v
		}
	}
	if _, ok := fieldErrors["password"]; !ok {
		if err := validatePassword(req.Password); err != nil {
			fieldErrors["password"] = err.Error()
		}
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		ProfileData:  json.RawMessage("{}"),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, &ConflictError{Code: CodeDuplicateIdentity, Message: "Email or username already in use"}
		}
		return nil, err
	}

	s.log.Info("user registered", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthTokens, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if isNoRows(err) {
			return nil, &UnauthorizedError{Message: "Invalid email or password"}
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, &UnauthorizedError{Message: "Invalid email or password"}
	}

	return s.issueTokens(ctx, user)
}

func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	userID, err := s.tokens.Lookup(ctx, refreshToken)
	if err != nil {
		return nil, &UnauthorizedError{Message: "Invalid or expired refresh token. Please log in again."}
	}

	// Rotation: each refresh token is single use.
	if err := s.tokens.Delete(ctx, refreshToken); err != nil {
		s.log.Warn("delete refresh token", "error", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, &UnauthorizedError{Message: "Account no longer exists"}
		}
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Delete(ctx, refreshToken)
}

func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, &NotFoundError{Code: CodeUserNotFound, Message: "User not found"}
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile replaces the user's profile blob. It must be a JSON object.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, profile json.RawMessage) (*models.User, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(profile, &obj); err != nil || obj == nil {
		return nil, &ValidationError{Fields: map[string]string{"profile_data": "Must be a JSON object"}}
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, userID, profile); err != nil {
		return nil, err
	}
	user.ProfileData = profile
	return user, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*models.AuthTokens, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := generateToken(64)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Save(ctx, refreshToken, user.ID, refreshTokenTTL); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(middleware.AccessTokenTTL.Seconds()),
	}, nil
}

func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func validatePassword(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("Password must be at least 8 characters")
	}
	hasNumber := false
	for _, ch := range pw {
		if unicode.IsDigit(ch) {
			hasNumber = true
			break
		}
	}
	if !hasNumber {
		return fmt.Errorf("Password must contain at least one number")
	}
	return nil
}
