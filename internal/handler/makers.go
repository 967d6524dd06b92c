package handler

import (
	"log/slog"
	"net/http"

	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/utils"
)

const generatedPasswordLength = 12

func (h *Handler) CreateMaker(w http.ResponseWriter, r *http.Request) {
	checker := actor(r)

	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"omitempty,min=8,max=72"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 没有指定密码时生成随机密码，并通过邮件告知 maker
	var generated string
	password := req.Password
	if password == "" {
		var err error
		generated, err = utils.GenerateRandomPassword(generatedPasswordLength)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		password = generated
	}

	maker, err := h.sessions.CreateMaker(r.Context(), checker, req.Email, password)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	if err := h.mailer.Publish(r.Context(), domain.MailMessage{
		Type: domain.MailTypeMakerCreated,
		To:   maker.Email,
		Data: domain.MakerCreatedMailData{
			Email:        maker.Email,
			Password:     generated,
			CheckerEmail: checker.Email,
		},
	}); err != nil {
		slog.Error("发送 maker 创建通知失败", "maker", maker.ID, "error", err)
	}

	h.createdResponse(w, r, "Maker registration successful.", map[string]any{
		"maker": map[string]any{
			"id":    maker.ID,
			"email": maker.Email,
			"created_by": map[string]any{
				"id":    checker.ID,
				"email": checker.Email,
			},
		},
	})
}

type makerSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

func (h *Handler) ListMyMakers(w http.ResponseWriter, r *http.Request) {
	makers, err := h.store.ListMakersCreatedBy(r.Context(), actor(r).ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	resp := make([]makerSummary, 0, len(makers))
	for _, m := range makers {
		resp = append(resp, makerSummary{
			ID:       m.ID.String(),
			Email:    m.Email,
			IsActive: m.IsActive,
		})
	}

	h.successResponse(w, r, "Fetched makers", resp)
}
