package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/config"
	"geojungle/internal/model"
	"geojungle/internal/repository"
)

// AuthService issues access tokens carrying the caller's role and rotates
// refresh tokens with reuse detection. Refresh tokens are bound to the
// audience (public or admin backend) that issued them.
type AuthService struct {
	tokens   repository.RefreshTokenRepository
	userRepo repository.UserRepository
	config   *config.Config
	now      func() time.Time
}

func NewAuthService(tokens repository.RefreshTokenRepository, userRepo repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		tokens:   tokens,
		userRepo: userRepo,
		config:   cfg,
		now:      time.Now,
	}
}

// GenerateTokenPair is called after a successful login.
func (s *AuthService) GenerateTokenPair(ctx context.Context, user *model.User, audience model.Audience, deviceInfo, ipAddress string) (*model.TokenPair, error) {
	pair, token, err := s.newPair(user, audience, deviceInfo, ipAddress)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return pair, nil
}

// RefreshTokens trades a live refresh token for a new pair. The role is read
// again, so a mini-admin grant or revoke shows up on the next refresh, and an
// admin-audience token stops working once its owner is no longer staff.
func (s *AuthService) RefreshTokens(ctx context.Context, raw string, audience model.Audience, deviceInfo, ipAddress string) (*model.TokenPair, error) {
	token, err := s.tokens.FindByTokenHash(ctx, hashToken(raw))
	if err != nil {
		return nil, model.ErrRefreshTokenNotFound
	}
	if token.Audience != audience {
		return nil, model.ErrRefreshTokenNotFound
	}
	if token.Revoked() {
		s.revokeFamily(ctx, token.UserID)
		return nil, model.ErrRefreshTokenReused
	}
	if token.ExpiredAt(s.now()) {
		return nil, model.ErrRefreshTokenExpired
	}

	user, err := s.userRepo.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrRefreshTokenNotFound
		}
		return nil, err
	}
	if audience == model.AudienceAdmin && user.Role() == model.RoleUser {
		if err := s.tokens.Revoke(ctx, token.ID); err != nil {
			log.WithError(err).WithField("token_id", token.ID).Warn("[AuthService] Failed to revoke demoted staff token")
		}
		return nil, model.ErrNotAdmin
	}

	pair, next, err := s.newPair(user, audience, deviceInfo, ipAddress)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Rotate(ctx, token.ID, next); err != nil {
		if errors.Is(err, model.ErrRefreshTokenReused) {
			// Lost a race with another refresh of the same token.
			s.revokeFamily(ctx, token.UserID)
		}
		return nil, err
	}
	return pair, nil
}

func (s *AuthService) RevokeRefreshToken(ctx context.Context, raw string) error {
	token, err := s.tokens.FindByTokenHash(ctx, hashToken(raw))
	if err != nil {
		return err
	}
	return s.tokens.Revoke(ctx, token.ID)
}

func (s *AuthService) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	n, err := s.tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": userID, "revoked": n}).Info("[AuthService] Logged out everywhere")
	return nil
}

// CleanupExpired purges refresh tokens that expired or were revoked more than
// retention ago.
func (s *AuthService) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return s.tokens.DeleteExpired(ctx, retention)
}

func (s *AuthService) revokeFamily(ctx context.Context, userID int64) {
	n, err := s.tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("[AuthService] Token reuse detected but family revoke failed")
		return
	}
	log.WithFields(log.Fields{"user_id": userID, "revoked": n}).Warn("[AuthService] Refresh token reuse detected; all sessions revoked")
}

func (s *AuthService) newPair(user *model.User, audience model.Audience, deviceInfo, ipAddress string) (*model.TokenPair, *model.RefreshToken, error) {
	accessToken, err := s.generateAccessToken(user.ID, user.Role())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	raw := uuid.NewString()
	token := &model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Audience:  audience,
		TokenHash: hashToken(raw),
		ExpiresAt: s.now().Add(time.Duration(s.config.RefreshTokenMaxAge) * time.Second),
	}
	if deviceInfo != "" {
		token.DeviceInfo = &deviceInfo
	}
	if ipAddress != "" {
		token.IPAddress = &ipAddress
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: raw,
		ExpiresIn:    s.config.AccessTokenMaxAge,
	}, token, nil
}

func (s *AuthService) generateAccessToken(userID int64, role string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     now.Add(time.Duration(s.config.AccessTokenMaxAge) * time.Second).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
