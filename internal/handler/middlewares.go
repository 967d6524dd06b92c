package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/policy"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/repository"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/token"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.ObserveRequest(r.Method, route, rw.StatusCode, duration)

		slog.Info("已处理请求", "status", rw.StatusCode, "ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", duration)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				stackTrace := string(debug.Stack())
				fmt.Print(stackTrace) // 这里如果用 slog 的话会很乱
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) isAnonymous(r *http.Request) bool {
	p := path.Clean("/" + r.URL.Path)
	_, ok := h.anonymous[strings.TrimRight(p, "/")]
	return ok
}

// accessToken 优先读取 cookie，其次读取 Authorization 头
func accessToken(r *http.Request) string {
	if cookie, err := r.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(bearer)
	}
	return ""
}

func (h *Handler) unauthenticated(w http.ResponseWriter, r *http.Request, reason, msg string) {
	metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	slog.Info("认证失败", "reason", reason, "method", r.Method, "path", r.URL.Path, "ip", r.RemoteAddr)
	h.errorResponse(w, r, http.StatusUnauthorized, msg)
}

// authenticate 对白名单之外的请求校验 access token，并把当前账号附在 context 中
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.isAnonymous(r) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := h.tokens.VerifyKind(accessToken(r), token.KindAccess)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrMissing):
				h.unauthenticated(w, r, "missing", "no token provided")
			case errors.Is(err, token.ErrExpired):
				h.unauthenticated(w, r, "expired", "token expired")
			default:
				h.unauthenticated(w, r, "malformed", "invalid token")
			}
			return
		}

		id, err := claims.AccountID()
		if err != nil {
			h.unauthenticated(w, r, "malformed", "invalid token")
			return
		}

		account, err := h.sessions.Resolve(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrAccountDisabled):
				h.unauthenticated(w, r, "disabled", "account disabled")
			case errors.Is(err, domain.ErrUnauthenticated):
				h.unauthenticated(w, r, "user_not_found", "user not found")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), AccountCtx, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRule(rule policy.Rule) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := rule(actor(r)); err != nil {
				h.domainError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var errEmployeeNotFound = domain.Wrap(domain.KindNotFound, "employee not found", domain.ErrNotFound)

func (h *Handler) employee(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		employeeID := chi.URLParam(r, "id")
		if _, err := uuid.Parse(employeeID); err != nil {
			h.domainError(w, r, errEmployeeNotFound)
			return
		}

		employee, err := h.store.GetEmployeeByID(r.Context(), employeeID)
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrRecordNotFound):
				h.domainError(w, r, errEmployeeNotFound)
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), EmployeeCtx, employee)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// employeeOwnership 要求记录的上传者是当前 checker 亲自创建的 maker
func (h *Handler) employeeOwnership(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		employee := r.Context().Value(EmployeeCtx).(*domain.Employee)

		uploader, err := h.store.GetAccountByID(r.Context(), employee.UploadedBy)
		if err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
			h.internalServerError(w, r, err)
			return
		}

		if err := policy.CanUpdateEmployeeStatus(actor(r), uploader); err != nil {
			h.domainError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), UploaderCtx, uploader)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
