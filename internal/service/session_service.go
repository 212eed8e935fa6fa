package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"solemate/internal/config"
	"solemate/internal/domain"
	"solemate/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for password hashes
const BcryptCost = 10

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

// Session is the signed-in identity carried by an access token.
// It is read-only; the admin flag comes from the profile at sign-in.
type Session struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
}

// SignInResult is returned on a successful sign-in
type SignInResult struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	Session      *Session `json:"session"`
}

// Claims represents the JWT claims
type Claims struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	jwt.RegisteredClaims
}

// SessionService defines sign-in, sign-out and token checks
type SessionService interface {
	SignIn(ctx context.Context, email, password string) (*SignInResult, error)
	SignOut(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Authenticate(accessToken string) (*Session, error)
	EnsureAdmin(ctx context.Context, email, password, fullName string) (*domain.Profile, error)
}

type sessionService struct {
	profiles      repository.ProfileRepository
	refreshTokens repository.RefreshTokenRepository
	secret        []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewSessionService creates a new instance of SessionService
func NewSessionService(
	profiles repository.ProfileRepository,
	refreshTokens repository.RefreshTokenRepository,
	cfg config.JWTConfig,
	logger *zap.Logger,
) SessionService {
	return &sessionService{
		profiles:      profiles,
		refreshTokens: refreshTokens,
		secret:        []byte(cfg.Secret),
		accessTTL:     time.Duration(cfg.AccessExpiry) * time.Minute,
		refreshTTL:    time.Duration(cfg.RefreshExpiry) * 24 * time.Hour,
		logger:        logger,
		now:           time.Now,
	}
}

// SignIn checks the password and opens a session
func (s *sessionService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	profile, err := s.profiles.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	access, err := s.issueAccessToken(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refresh, err := s.issueRefreshToken(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	s.logger.Info("Session opened", zap.String("profile_id", profile.ID.String()), zap.Bool("is_admin", profile.IsAdmin))

	return &SignInResult{
		AccessToken:  access,
		RefreshToken: refresh,
		Session:      sessionOf(profile),
	}, nil
}

// SignOut revokes the refresh token. Unknown tokens count as signed out.
func (s *sessionService) SignOut(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokens.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// Refresh issues a new access token. The admin flag is re-read from the profile.
func (s *sessionService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	stored, err := s.refreshTokens.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if s.now().After(stored.ExpiresAt) {
		return "", ErrTokenExpired
	}

	profile, err := s.profiles.FindByID(ctx, stored.ProfileID)
	if err != nil {
		return "", fmt.Errorf("failed to find profile: %w", err)
	}

	access, err := s.issueAccessToken(profile)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return access, nil
}

// Authenticate validates an access token and returns its session
func (s *sessionService) Authenticate(accessToken string) (*Session, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &Session{ProfileID: claims.ProfileID, Email: claims.Email, IsAdmin: claims.IsAdmin}, nil
}

// EnsureAdmin creates the bootstrap admin profile when it does not exist yet
func (s *sessionService) EnsureAdmin(ctx context.Context, email, password, fullName string) (*domain.Profile, error) {
	email = normalizeEmail(email)

	existing, err := s.profiles.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to check existing profile: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	profile := &domain.Profile{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		IsAdmin:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create admin profile: %w", err)
	}

	s.logger.Info("Admin profile created", zap.String("profile_id", profile.ID.String()))
	return profile, nil
}

func (s *sessionService) issueAccessToken(profile *domain.Profile) (string, error) {
	now := s.now()
	claims := &Claims{
		ProfileID: profile.ID,
		Email:     profile.Email,
		IsAdmin:   profile.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *sessionService) issueRefreshToken(ctx context.Context, profile *domain.Profile) (string, error) {
	now := s.now()
	refresh := &domain.RefreshToken{
		ID:        uuid.New(),
		ProfileID: profile.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}

	if err := s.refreshTokens.Create(ctx, refresh); err != nil {
		return "", err
	}
	return refresh.Token, nil
}

func sessionOf(profile *domain.Profile) *Session {
	return &Session{ProfileID: profile.ID, Email: profile.Email, IsAdmin: profile.IsAdmin}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
