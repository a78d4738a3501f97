// Package auth issues and verifies the access tokens used by the record service.
//
// A session is a signed JWT whose jti names a row in auth_sessions. Signing out or
// refreshing revokes that row, so a token stops working before it expires.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/codyseavey/cardvault/internal/metrics"
	"github.com/codyseavey/cardvault/internal/models"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired session")
	ErrPasswordRequired   = errors.New("password must not be empty")
)

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service signs users up and in, and authenticates bearer tokens.
type Service struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	cache  *lru.Cache[string, models.AuthSession]
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewService creates an auth service. cacheSize bounds the number of sessions kept in memory.
func NewService(db *gorm.DB, secret string, ttl time.Duration, cacheSize int, logger *zap.SugaredLogger) (*Service, error) {
	if secret == "" {
		return nil, errors.New("auth secret must not be empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, models.AuthSession](cacheSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		db:     db,
		secret: []byte(secret),
		ttl:    ttl,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}, nil
}

// SignUp creates an account and returns its first session.
func (s *Service) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	email = normalizeEmail(email)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		metrics.AuthEventsTotal.WithLabelValues("signup", "conflict").Inc()
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		metrics.AuthEventsTotal.WithLabelValues("signup", "error").Inc()
		return nil, err
	}

	s.logger.Infow("user signed up", "user_id", user.ID)
	metrics.AuthEventsTotal.WithLabelValues("signup", "ok").Inc()
	return s.issue(ctx, &user)
}

// SignIn checks the password and returns a new session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthEventsTotal.WithLabelValues("signin", "rejected").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		metrics.AuthEventsTotal.WithLabelValues("signin", "rejected").Inc()
		return nil, ErrInvalidCredentials
	}

	metrics.AuthEventsTotal.WithLabelValues("signin", "ok").Inc()
	return s.issue(ctx, &user)
}

// Refresh swaps a live token for a new one and revokes the old session.
func (s *Service) Refresh(ctx context.Context, token string) (*models.Session, error) {
	user, sessionID, err := s.Authenticate(ctx, token)
	if err != nil {
		metrics.AuthEventsTotal.WithLabelValues("refresh", "rejected").Inc()
		return nil, err
	}
	if err := s.revoke(ctx, sessionID); err != nil {
		return nil, err
	}
	metrics.AuthEventsTotal.WithLabelValues("refresh", "ok").Inc()
	return s.issue(ctx, user)
}

// SignOut revokes the session behind token. Signing out twice is not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if err != nil {
		return ErrInvalidToken
	}
	if err := s.revoke(ctx, c.ID); err != nil {
		return err
	}
	metrics.AuthEventsTotal.WithLabelValues("signout", "ok").Inc()
	return nil
}

// UpdatePassword replaces the user's password and revokes every other active session,
// so only the session identified by keepSessionID stays signed in.
func (s *Service) UpdatePassword(ctx context.Context, userID, keepSessionID, password string) (*models.User, error) {
	if password == "" {
		metrics.AuthEventsTotal.WithLabelValues("password", "rejected").Inc()
		return nil, ErrPasswordRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user models.User
	var revoked []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Update("password_hash", string(hash)).Error; err != nil {
			return err
		}
		err := tx.Model(&models.AuthSession{}).
			Where("user_id = ? AND id <> ? AND revoked_at IS NULL", userID, keepSessionID).
			Pluck("id", &revoked).Error
		if err != nil {
			return err
		}
		if len(revoked) == 0 {
			return nil
		}
		return tx.Model(&models.AuthSession{}).Where("id IN ?", revoked).Update("revoked_at", s.now()).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		metrics.AuthEventsTotal.WithLabelValues("password", "error").Inc()
		return nil, err
	}

	for _, id := range revoked {
		s.cache.Remove(id)
	}
	s.logger.Infow("password updated", "user_id", userID, "revoked_sessions", len(revoked))
	metrics.AuthEventsTotal.WithLabelValues("password", "ok").Inc()
	return &user, nil
}

// Authenticate resolves a bearer token to its user and session id.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, string, error) {
	c, err := s.parse(token)
	if err != nil {
		return nil, "", ErrInvalidToken
	}

	session, err := s.lookupSession(ctx, c.ID)
	if err != nil {
		return nil, "", err
	}
	if !session.Active(s.now()) || session.UserID != c.Subject {
		return nil, "", ErrInvalidToken
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidToken
		}
		return nil, "", err
	}
	return &user, session.ID, nil
}

func (s *Service) issue(ctx context.Context, user *models.User) (*models.Session, error) {
	now := s.now()
	session := models.AuthSession{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}
	s.cache.Add(session.ID, session)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &models.Session{
		AccessToken: signed,
		ExpiresAt:   session.ExpiresAt,
		User:        user,
	}, nil
}

func (s *Service) parse(token string) (*claims, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if c.ID == "" || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

func (s *Service) lookupSession(ctx context.Context, id string) (models.AuthSession, error) {
	if session, ok := s.cache.Get(id); ok {
		metrics.SessionCacheLookups.WithLabelValues("hit").Inc()
		return session, nil
	}
	metrics.SessionCacheLookups.WithLabelValues("miss").Inc()

	var session models.AuthSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session, ErrInvalidToken
	}
	if err != nil {
		return session, err
	}
	s.cache.Add(id, session)
	return session, nil
}

func (s *Service) revoke(ctx context.Context, sessionID string) error {
	now := s.now()
	err := s.db.WithContext(ctx).Model(&models.AuthSession{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", now).Error
	if err != nil {
		return err
	}
	s.cache.Remove(sessionID)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
