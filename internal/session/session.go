// Package session 实现注册、登录、刷新 access token 等会话生命周期操作。
// cookie 的写入与清除由 handler 负责
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/repository"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/token"
)

type Service struct {
	accounts           repository.AccountStore
	tokens             *token.Service
	refreshCheckActive bool
}

func NewService(accounts repository.AccountStore, tokens *token.Service, refreshCheckActive bool) *Service {
	return &Service{
		accounts:           accounts,
		tokens:             tokens,
		refreshCheckActive: refreshCheckActive,
	}
}

// Register 自助注册，得到的是 checker 账号
func (s *Service) Register(ctx context.Context, email, password string) (*domain.Account, error) {
	account, err := domain.NewChecker(email, password)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// CreateMaker 由 checker 创建 maker，调用方需先通过 policy.CanCreateMaker
func (s *Service) CreateMaker(ctx context.Context, checker *domain.Account, email, password string) (*domain.Account, error) {
	maker, err := domain.NewMaker(email, password, checker.ID)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.CreateAccount(ctx, maker); err != nil {
		return nil, err
	}
	return maker, nil
}

// Login 校验邮箱和密码，成功后更新 last_login 并签发 token 对
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Account, token.Pair, error) {
	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, token.Pair{}, domain.ErrInvalidCredentials
		}
		return nil, token.Pair{}, err
	}

	ok, err := account.VerifyPassword(password)
	if err != nil {
		return nil, token.Pair{}, err
	}
	if !ok {
		return nil, token.Pair{}, domain.ErrInvalidCredentials
	}

	if !account.IsActive {
		return nil, token.Pair{}, domain.ErrAccountDisabled
	}

	account.LastLogin = time.Now()
	if err := s.accounts.UpdateAccount(ctx, account); err != nil && !errors.Is(err, repository.ErrEditConflict) {
		// last_login 采用后写者胜出，版本冲突不影响登录
		return nil, token.Pair{}, err
	}

	pair, err := s.tokens.IssuePair(account)
	if err != nil {
		return nil, token.Pair{}, err
	}

	return account, pair, nil
}

// Refresh 用 refresh token 换取新的 access token。开启 refreshCheckActive 时
// 会重新从存储中确认账号存在且未被停用
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	if refreshToken == "" {
		return "", time.Time{}, domain.Wrap(domain.KindAuthentication, "refresh token required", token.ErrMissing)
	}

	claims, err := s.tokens.VerifyKind(refreshToken, token.KindRefresh)
	if err != nil {
		return "", time.Time{}, domain.Wrap(domain.KindAuthentication, "invalid refresh token", err)
	}

	if s.refreshCheckActive {
		if err := s.checkActive(ctx, claims); err != nil {
			return "", time.Time{}, err
		}
	}

	access, exp, err := s.tokens.IssueAccessFromRefresh(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return access, exp, nil
}

func (s *Service) checkActive(ctx context.Context, claims *token.Claims) error {
	id, err := claims.AccountID()
	if err != nil {
		return domain.Wrap(domain.KindAuthentication, "invalid refresh token", err)
	}

	account, err := s.accounts.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return domain.Wrap(domain.KindAuthentication, "user not found", domain.ErrUnauthenticated)
		}
		return err
	}
	if !account.IsActive {
		return domain.ErrAccountDisabled
	}
	return nil
}

// ChangePassword 修改自己的密码，需要提供旧密码
func (s *Service) ChangePassword(ctx context.Context, account *domain.Account, oldPassword, newPassword string) error {
	ok, err := account.VerifyPassword(oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Wrap(domain.KindValidation, "old password is incorrect", nil)
	}
	return s.SetPassword(ctx, account, newPassword)
}

func (s *Service) SetPassword(ctx context.Context, account *domain.Account, password string) error {
	if err := account.SetPassword(password); err != nil {
		return err
	}
	if err := s.accounts.UpdateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrEditConflict) {
			return domain.Wrap(domain.KindValidation, "account was modified concurrently, please retry", err)
		}
		return err
	}
	return nil
}

// Resolve 根据 access token 中的 subject 找到当前操作者
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, domain.Wrap(domain.KindAuthentication, "user not found", domain.ErrUnauthenticated)
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, domain.ErrAccountDisabled
	}
	return account, nil
}
