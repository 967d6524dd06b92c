package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Role 是由账号上各个独立的布尔标志推导出来的角色，只用于展示和日志，
// 权限判断仍然直接检查对应的标志
type Role string

const (
	RoleChecker   Role = "checker"
	RoleMaker     Role = "maker"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
	RoleNone      Role = "none"
)

type Account struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	PasswordHash  string     `json:"-"`
	EmailVerified bool       `json:"email_verified"`
	CreatedBy     *uuid.UUID `json:"created_by"`
	DateJoined    time.Time  `json:"date_joined"`
	LastLogin     time.Time  `json:"last_login"`
	IsMaker       bool       `json:"is_maker"`
	IsChecker     bool       `json:"is_checker"`
	IsActive      bool       `json:"is_active"`
	IsStaff       bool       `json:"is_staff"`
	IsSuperuser   bool       `json:"is_superuser"`
	UpdatedAt     time.Time  `json:"-"`
	Version       int32      `json:"-"`
}

func newAccount(email string) *Account {
	now := time.Now()
	return &Account{
		ID:         uuid.New(),
		Email:      email,
		Username:   email,
		DateJoined: now,
		LastLogin:  now,
		IsActive:   true,
		UpdatedAt:  now,
	}
}

// NewChecker 创建自助注册产生的账号，默认就是 checker
func NewChecker(email, password string) (*Account, error) {
	a := newAccount(email)
	a.IsChecker = true
	a.EmailVerified = true
	if err := a.SetPassword(password); err != nil {
		return nil, err
	}
	return a, nil
}

// NewMaker 创建由 checker 建立的 maker 账号，createdBy 决定了之后的归属关系
func NewMaker(email, password string, createdBy uuid.UUID) (*Account, error) {
	a := newAccount(email)
	a.IsMaker = true
	a.CreatedBy = &createdBy
	if err := a.SetPassword(password); err != nil {
		return nil, err
	}
	return a, nil
}

func NewSuperuser(email, password string) (*Account, error) {
	a := newAccount(email)
	a.IsStaff = true
	a.IsSuperuser = true
	if err := a.SetPassword(password); err != nil {
		return nil, err
	}
	return a, nil
}

// MaxPasswordBytes 是 bcrypt 能处理的最大字节数，多字节字符按字节计算
const MaxPasswordBytes = 72

// ValidatePassword 只检查 bcrypt 的字节上限，其余规则由请求校验负责
func ValidatePassword(raw string) error {
	if len(raw) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

func (a *Account) SetPassword(raw string) error {
	if err := ValidatePassword(raw); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return Wrap(KindValidation, ErrPasswordTooLong.Message, err)
		}
		return err
	}
	a.PasswordHash = string(hash)
	return nil
}

// VerifyPassword 密码不匹配时返回 false 和 nil，只有存储的哈希本身损坏时才返回错误
func (a *Account) VerifyPassword(raw string) (bool, error) {
	if len(raw) > MaxPasswordBytes {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(raw))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

func (a *Account) Role() Role {
	switch {
	case a.IsSuperuser:
		return RoleSuperuser
	case a.IsChecker:
		return RoleChecker
	case a.IsMaker:
		return RoleMaker
	case a.IsStaff:
		return RoleAdmin
	default:
		return RoleNone
	}
}

// IsCreatedBy 判断该账号是否由 checkerID 对应的账号创建
func (a *Account) IsCreatedBy(checkerID uuid.UUID) bool {
	return a.CreatedBy != nil && *a.CreatedBy == checkerID
}
