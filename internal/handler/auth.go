package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/otp"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/repository"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/token"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/utils"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"

	purposeResetPassword = "reset_password"
)

func (h *Handler) setTokenCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		Path:     "/",
		Domain:   h.config.Cookie.Domain,
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: h.config.CookieSameSite(),
	})
}

// clearTokenCookies 使用与设置时相同的属性，浏览器才会删除对应的 cookie
func (h *Handler) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Path:     "/",
			Domain:   h.config.Cookie.Domain,
			HttpOnly: true,
			Secure:   h.config.Cookie.Secure,
			SameSite: h.config.CookieSameSite(),
		})
	}
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	account, err := h.sessions.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.createdResponse(w, r, "Registration successful.", map[string]any{
		"user": map[string]any{
			"id":    account.ID,
			"email": account.Email,
		},
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	account, pair, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			metrics.AuthFailuresTotal.WithLabelValues("bad_credentials").Inc()
		case errors.Is(err, domain.ErrAccountDisabled):
			metrics.AuthFailuresTotal.WithLabelValues("disabled").Inc()
		}
		h.domainError(w, r, err)
		return
	}

	h.setTokenCookie(w, accessTokenCookie, pair.Access, pair.AccessExpiresAt)
	h.setTokenCookie(w, refreshTokenCookie, pair.Refresh, pair.RefreshExpiresAt)

	h.successResponse(w, r, "Login successful", map[string]any{
		"user": map[string]any{
			"id":         account.ID,
			"email":      account.Email,
			"is_maker":   account.IsMaker,
			"is_checker": account.IsChecker,
		},
		"tokens": map[string]string{
			"access":  pair.Access,
			"refresh": pair.Refresh,
		},
	})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var refresh string
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		refresh = cookie.Value
	}

	access, expiresAt, err := h.sessions.Refresh(r.Context(), refresh)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrMissing):
			// 没有 refresh token 时不动已有的 cookie
			h.unauthenticated(w, r, "missing", domain.MessageOf(err))
		case domain.KindOf(err) == domain.KindAuthentication:
			h.clearTokenCookies(w)
			h.unauthenticated(w, r, "refresh_rejected", domain.MessageOf(err))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.setTokenCookie(w, accessTokenCookie, access, expiresAt)

	h.successResponse(w, r, "Token refreshed successfully", map[string]string{
		"access_token": access,
	})
}

// Logout 无论之前是否登录都会清除两个 cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearTokenCookies(w)
	h.successResponse(w, r, "Logged out successfully", nil)
}

func (h *Handler) RequireResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	const msg = "Password reset code has been sent by email"

	account, err := h.store.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			// 邮箱不存在时同样返回成功，避免接口被用来探测账号
			h.successResponse(w, r, msg, nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	code, err := utils.GenerateRandomOTP()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	expiration := time.Duration(h.config.OTP.Expiration) * time.Second
	if err := h.otps.Save(r.Context(), purposeResetPassword, account.Email, code, expiration); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.mailer.Publish(r.Context(), domain.MailMessage{
		Type: domain.MailTypeResetPassword,
		To:   account.Email,
		Data: domain.ResetPasswordMailData{
			Email:      account.Email,
			OTP:        code,
			Expiration: h.config.OTP.Expiration / 60, // 邮件中以分钟显示
		},
	}); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, msg, nil)
}

func (h *Handler) ConfirmResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		OTP      string `json:"otp" validate:"required,len=6,numeric"`
		Password string `json:"password" validate:"required,min=8,max=72"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 在消耗验证码之前检查密码，避免因密码过长白白作废验证码
	if err := domain.ValidatePassword(req.Password); err != nil {
		h.domainError(w, r, err)
		return
	}

	const invalidCode = "invalid or expired code"

	account, err := h.store.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			h.errorResponse(w, r, http.StatusBadRequest, invalidCode)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.otps.Consume(r.Context(), purposeResetPassword, account.Email, req.OTP); err != nil {
		switch {
		case errors.Is(err, otp.ErrInvalidCode):
			h.errorResponse(w, r, http.StatusBadRequest, invalidCode)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.sessions.SetPassword(r.Context(), account, req.Password); err != nil {
		h.domainError(w, r, err)
		return
	}

	slog.Info("已重置密码", "account", account.ID)
	h.successResponse(w, r, "Password reset successful", nil)
}
