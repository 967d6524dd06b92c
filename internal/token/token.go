// Package token 负责签发和校验 access / refresh 两类 JWT
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	ErrMissing   = errors.New("token not provided")
	ErrExpired   = errors.New("token expired")
	ErrMalformed = errors.New("token malformed")
)

type Claims struct {
	Email string `json:"email"`
	Kind  Kind   `json:"token_type"`
	jwt.RegisteredClaims
}

// AccountID 将 subject 解析为账号 ID
func (c *Claims) AccountID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrMalformed
	}
	return id, nil
}

type Pair struct {
	Access           string
	AccessExpiresAt  time.Time
	Refresh          string
	RefreshExpiresAt time.Time
}

type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*Service)

// WithClock 替换用于签发和校验的时钟
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(secret string, accessTTL, refreshTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *Service) Issue(account *domain.Account, kind Kind, ttl time.Duration) (string, time.Time, error) {
	return s.issue(account.ID.String(), account.Email, kind, ttl)
}

func (s *Service) issue(subject, email string, kind Kind, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiration := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	})
	ss, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return ss, expiration, nil
}

// IssuePair 登录时同时签发 access token 和 refresh token
func (s *Service) IssuePair(account *domain.Account) (Pair, error) {
	access, accessExp, err := s.Issue(account, KindAccess, s.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := s.Issue(account, KindRefresh, s.refreshTTL)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		Access:           access,
		AccessExpiresAt:  accessExp,
		Refresh:          refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify 校验签名和有效期，过期返回 ErrExpired，其余问题一律返回 ErrMalformed
func (s *Service) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	if claims.Subject == "" {
		return nil, ErrMalformed
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, err
	}

	return claims, nil
}

// VerifyKind 在 Verify 的基础上要求 token 的类型与 kind 一致
func (s *Service) VerifyKind(tokenString string, kind Kind) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrMalformed
	}
	return claims, nil
}

// IssueAccessFromRefresh 用已经校验过的 refresh token 身份信息签发新的 access token，
// 不会再次解析 token，也不会访问账号存储
func (s *Service) IssueAccessFromRefresh(claims *Claims) (string, time.Time, error) {
	if claims == nil || claims.Kind != KindRefresh {
		return "", time.Time{}, ErrMalformed
	}
	return s.issue(claims.Subject, claims.Email, KindAccess, s.accessTTL)
}
