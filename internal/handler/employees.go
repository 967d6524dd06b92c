package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/policy"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/repository"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/storage"
)

func (h *Handler) uploadFormFile(r *http.Request, field string, category storage.Category) (storage.Asset, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return storage.Asset{}, domain.Wrap(domain.KindValidation, field+" is required", err)
		}
		return storage.Asset{}, domain.Wrap(domain.KindValidation, "invalid multipart form", err)
	}
	defer file.Close()

	if header.Size > h.config.Upload.MaxFileSize {
		return storage.Asset{}, domain.Wrap(domain.KindValidation, fmt.Sprintf("%s exceeds %d bytes", field, h.config.Upload.MaxFileSize), nil)
	}

	return h.uploader.Upload(r.Context(), category, storage.File{
		Name:        header.Filename,
		ContentType: contentType(header),
		Size:        header.Size,
		Body:        file,
	})
}

func contentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *Handler) UploadEmployee(w http.ResponseWriter, r *http.Request) {
	maker := actor(r)

	if err := r.ParseMultipartForm(h.config.Upload.MaxMemory); err != nil {
		h.badRequest(w, r, errors.New("invalid multipart form"))
		return
	}

	req := struct {
		FirstName string `json:"first_name" validate:"required,max=100"`
		LastName  string `json:"last_name" validate:"required,max=100"`
	}{
		FirstName: strings.TrimSpace(r.FormValue("first_name")),
		LastName:  strings.TrimSpace(r.FormValue("last_name")),
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	photo, err := h.uploadFormFile(r, "photo", storage.CategoryPhoto)
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	resume, err := h.uploadFormFile(r, "resume", storage.CategoryResume)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	employee := domain.NewEmployee(req.FirstName, req.LastName, maker)
	employee.PhotoURL = photo.SecureURL
	employee.PhotoPublicID = photo.PublicID
	employee.ResumeURL = resume.SecureURL
	employee.ResumePublicID = resume.PublicID

	if err := h.store.CreateEmployee(r.Context(), employee); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.createdResponse(w, r, "Employee uploaded successfully", employee)
}

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.store.ListEmployees(r.Context(), policy.EmployeeListScope(actor(r)))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "Fetched employees", employees)
}

func (h *Handler) UpdateEmployeeStatus(w http.ResponseWriter, r *http.Request) {
	checker := actor(r)
	employee := r.Context().Value(EmployeeCtx).(*domain.Employee)
	uploader := r.Context().Value(UploaderCtx).(*domain.Account)

	var req struct {
		Status string `json:"status" validate:"required,oneof=approved declined"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := employee.Review(checker, domain.EmployeeStatus(req.Status)); err != nil {
		h.domainError(w, r, err)
		return
	}

	if err := h.store.UpdateEmployee(r.Context(), employee); err != nil {
		switch {
		case errors.Is(err, repository.ErrEditConflict):
			h.errorResponse(w, r, http.StatusBadRequest, "employee was modified concurrently, please retry")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	metrics.EmployeeReviewsTotal.WithLabelValues(string(employee.Status)).Inc()

	if err := h.mailer.Publish(r.Context(), domain.MailMessage{
		Type: domain.MailTypeEmployeeReviewed,
		To:   uploader.Email,
		Data: domain.EmployeeReviewedMailData{
			EmployeeName: employee.FirstName + " " + employee.LastName,
			Status:       string(employee.Status),
			CheckerEmail: checker.Email,
		},
	}); err != nil {
		slog.Error("发送审核结果通知失败", "employee", employee.ID, "error", err)
	}

	h.successResponse(w, r, "Employee status updated", employee)
}
