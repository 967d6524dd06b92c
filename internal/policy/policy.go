// Package policy 包含 maker-checker 流程中的权限规则。所有规则都是
// (操作者, 目标资源) 的纯函数，不依赖 HTTP 或存储
package policy

import (
	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
)

// Rule 判断操作者是否有权执行某类操作，无权时返回 Authorization 类别的错误
type Rule func(actor *domain.Account) error

var (
	ErrCheckerOnly = domain.Wrap(domain.KindAuthorization, "only checkers can perform this action", domain.ErrForbidden)
	ErrMakerOnly   = domain.Wrap(domain.KindAuthorization, "only makers can perform this action", domain.ErrForbidden)
	ErrNotOwner    = domain.Wrap(domain.KindAuthorization, "not authorized to update this employee's status", domain.ErrForbidden)
)

func RequireChecker(actor *domain.Account) error {
	if actor == nil || !actor.IsChecker {
		return ErrCheckerOnly
	}
	return nil
}

func RequireMaker(actor *domain.Account) error {
	if actor == nil || !actor.IsMaker {
		return ErrMakerOnly
	}
	return nil
}

var (
	CanCreateMaker     Rule = RequireChecker
	CanListMakers      Rule = RequireChecker
	CanUploadEmployee  Rule = RequireMaker
	CanReviewEmployees Rule = RequireChecker
)

// CanUpdateEmployeeStatus 要求操作者是 checker，且记录的上传者正是由该 checker 创建的 maker
func CanUpdateEmployeeStatus(actor *domain.Account, uploader *domain.Account) error {
	if err := RequireChecker(actor); err != nil {
		return err
	}
	if uploader == nil || !uploader.IsMaker || !uploader.IsCreatedBy(actor.ID) {
		return ErrNotOwner
	}
	return nil
}

type ScopeKind uint8

const (
	ScopeNone ScopeKind = iota
	// ScopeCreator 只包含由 OwnerID 创建的 maker 上传的记录
	ScopeCreator
	// ScopeUploader 只包含由 OwnerID 上传的记录
	ScopeUploader
)

// EmployeeScope 描述员工列表的可见范围
type EmployeeScope struct {
	Kind    ScopeKind
	OwnerID uuid.UUID
}

func EmployeeListScope(actor *domain.Account) EmployeeScope {
	switch {
	case actor == nil:
		return EmployeeScope{Kind: ScopeNone}
	case actor.IsChecker:
		return EmployeeScope{Kind: ScopeCreator, OwnerID: actor.ID}
	case actor.IsMaker:
		return EmployeeScope{Kind: ScopeUploader, OwnerID: actor.ID}
	default:
		return EmployeeScope{Kind: ScopeNone}
	}
}

// Includes 判断由 uploader 上传的记录是否落在该范围内
func (s EmployeeScope) Includes(uploader *domain.Account) bool {
	if uploader == nil {
		return false
	}
	switch s.Kind {
	case ScopeCreator:
		return uploader.IsMaker && uploader.IsCreatedBy(s.OwnerID)
	case ScopeUploader:
		return uploader.ID == s.OwnerID
	default:
		return false
	}
}
