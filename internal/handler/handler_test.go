package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/config"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/otp"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/repository"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/storage"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/token"
)

const testPassword = "password123"

type fakeUploader struct {
	mu      sync.Mutex
	uploads []storage.File
}

func (u *fakeUploader) Upload(_ context.Context, category storage.Category, file storage.File) (storage.Asset, error) {
	if _, err := io.Copy(io.Discard, file.Body); err != nil {
		return storage.Asset{}, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads = append(u.uploads, file)

	key := storage.ObjectKey(category, file.Name)
	return storage.Asset{SecureURL: "https://cdn.test/" + key, PublicID: key}, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []domain.MailMessage
	err  error
}

func (m *fakeMailer) Publish(_ context.Context, msg domain.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last() domain.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testEnv struct {
	t        *testing.T
	cfg      *config.Config
	store    *repository.MemoryStore
	tokens   *token.Service
	uploader *fakeUploader
	mailer   *fakeMailer
	otps     *otp.RedisStore
	redis    *miniredis.Miniredis
	handler  *Handler

	mu  sync.Mutex
	now time.Time
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func newTestEnv(t *testing.T, refreshCheckActive bool) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = 24 * time.Hour
	cfg.JWT.RefreshCheckActive = refreshCheckActive
	cfg.Cookie.Secure = true
	cfg.Cookie.SameSite = "none"
	cfg.OTP.Expiration = 900
	cfg.OTP.MaxAttempts = 5
	cfg.Upload.MaxMemory = 1 << 20
	cfg.Upload.MaxFileSize = 1 << 10

	env := &testEnv{
		t:        t,
		cfg:      cfg,
		store:    repository.NewMemoryStore(),
		uploader: &fakeUploader{},
		mailer:   &fakeMailer{},
		redis:    miniredis.RunT(t),
		now:      time.Now(),
	}
	rdb := redis.NewClient(&redis.Options{Addr: env.redis.Addr()})
	t.Cleanup(func() { rdb.Close() })
	env.otps = otp.NewRedisStore(rdb, time.Second, cfg.OTP.MaxAttempts)
	env.tokens = token.NewService(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL, token.WithClock(env.clock))

	h, err := NewHandler(cfg, env.store, env.tokens, env.uploader, env.mailer, env.otps)
	require.NoError(t, err)
	h.RegisterRoutes()
	env.handler = h

	return env
}

type testResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) serve(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.Mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return e.serve(req, cookies)
}

type uploadForm struct {
	firstName string
	lastName  string
	photo     []byte
	resume    []byte
}

func (e *testEnv) upload(form uploadForm, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(e.t, w.WriteField("first_name", form.firstName))
	require.NoError(e.t, w.WriteField("last_name", form.lastName))
	if form.photo != nil {
		fw, err := w.CreateFormFile("photo", "photo.jpg")
		require.NoError(e.t, err)
		_, err = fw.Write(form.photo)
		require.NoError(e.t, err)
	}
	if form.resume != nil {
		fw, err := w.CreateFormFile("resume", "resume.pdf")
		require.NoError(e.t, err)
		_, err = fw.Write(form.resume)
		require.NoError(e.t, err)
	}
	require.NoError(e.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/user/employees/upload/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.serve(req, cookies)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) testResponse {
	t.Helper()
	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	resp := decode(t, rec)
	require.NoError(t, json.Unmarshal(resp.Data, v), string(resp.Data))
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (e *testEnv) register(email string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/user/register/", map[string]string{"email": email, "password": testPassword})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
}

// login 返回登录后得到的 access 和 refresh cookie
func (e *testEnv) login(email string) []*http.Cookie {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/user/login/", map[string]string{"email": email, "password": testPassword})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())

	access := cookieByName(rec, accessTokenCookie)
	refresh := cookieByName(rec, refreshTokenCookie)
	require.NotNil(e.t, access)
	require.NotNil(e.t, refresh)
	return []*http.Cookie{access, refresh}
}

func (e *testEnv) createMaker(checker []*http.Cookie, email string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/user/register/maker/", map[string]string{"email": email, "password": testPassword}, checker...)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *testEnv) uploadEmployee(maker []*http.Cookie, first, last string) domain.Employee {
	e.t.Helper()
	rec := e.upload(uploadForm{firstName: first, lastName: last, photo: []byte("jpeg"), resume: []byte("pdf")}, maker...)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	var employee domain.Employee
	decodeData(e.t, rec, &employee)
	return employee
}

func (e *testEnv) account(email string) *domain.Account {
	e.t.Helper()
	account, err := e.store.GetAccountByEmail(context.Background(), email)
	require.NoError(e.t, err)
	return account
}

func (e *testEnv) disable(email string) {
	e.t.Helper()
	account := e.account(email)
	account.IsActive = false
	require.NoError(e.t, e.store.UpdateAccount(context.Background(), account))
}
