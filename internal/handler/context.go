package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
)

type ContextKey string

var (
	AccountCtx  ContextKey = "account"
	EmployeeCtx ContextKey = "employee"
	UploaderCtx ContextKey = "uploader"
)

// actor 返回通过认证的当前账号，白名单路由上为 nil
func actor(r *http.Request) *domain.Account {
	account, _ := r.Context().Value(AccountCtx).(*domain.Account)
	return account
}
