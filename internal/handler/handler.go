package handler

import (
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/config"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/mailqueue"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/otp"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/policy"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/repository"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/session"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/storage"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/token"
)

// anonymousPaths 中的路径不需要 access token。匹配时只去掉末尾的斜杠，
// 不做前缀或后缀匹配
var anonymousPaths = []string{
	"/user/register",
	"/user/login",
	"/user/logout",
	"/user/admin-login",
	"/user/refresh-token",
	"/user/google-auth",
	"/user/verify-otp",
	"/user/resend-otp",
	"/user/reset-password/require",
	"/user/reset-password/confirm",
	"/healthz",
}

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	store      repository.Store
	tokens     *token.Service
	sessions   *session.Service
	uploader   storage.Uploader
	mailer     mailqueue.Publisher
	otps       otp.Store
	translator ut.Translator
	anonymous  map[string]struct{}

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, store repository.Store, tokens *token.Service, uploader storage.Uploader, mailer mailqueue.Publisher, otps otp.Store) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// 校验错误信息中使用 json 字段名
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	anonymous := make(map[string]struct{}, len(anonymousPaths))
	for _, p := range anonymousPaths {
		anonymous[p] = struct{}{}
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		store:      store,
		tokens:     tokens,
		sessions:   session.NewService(store, tokens, cfg.JWT.RefreshCheckActive),
		uploader:   uploader,
		mailer:     mailer,
		otps:       otps,
		translator: trans,
		anonymous:  anonymous,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(middleware.StripSlashes)
	// 除白名单外的所有请求都必须携带有效的 access token
	h.Mux.Use(h.authenticate)

	h.Mux.Get("/healthz", h.Health)

	h.Mux.Route("/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh-token", h.RefreshToken)
		r.Post("/logout", h.Logout)
		r.Route("/reset-password", func(r chi.Router) {
			r.Post("/require", h.RequireResetPassword)
			r.Post("/confirm", h.ConfirmResetPassword)
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.With(h.requireRule(policy.CanCreateMaker)).Post("/register/maker", h.CreateMaker)
		r.With(h.requireRule(policy.CanListMakers)).Get("/fetch-makers", h.ListMyMakers)

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.With(h.requireRule(policy.CanUploadEmployee)).Post("/upload", h.UploadEmployee)
			r.With(
				h.requireRule(policy.CanReviewEmployees),
				h.employee,
				h.employeeOwnership,
			).Patch("/{id}/status", h.UpdateEmployeeStatus)
		})
	})
}
