package handler

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/token"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(http.MethodPost, "/user/register", map[string]string{"email": "c1@example.com", "password": testPassword})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Success)

	rec = env.do(http.MethodPost, "/user/register", map[string]string{"email": "c1@example.com", "password": testPassword})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email already exists", decode(t, rec).Message)

	rec = env.do(http.MethodPost, "/user/register", map[string]string{"email": "not-an-email", "password": testPassword})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/user/login", map[string]string{"email": "c1@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		User struct {
			ID        uuid.UUID `json:"id"`
			Email     string    `json:"email"`
			IsMaker   bool      `json:"is_maker"`
			IsChecker bool      `json:"is_checker"`
		} `json:"user"`
	}
	decodeData(t, rec, &data)
	assert.Equal(t, "c1@example.com", data.User.Email)
	assert.True(t, data.User.IsChecker)
	assert.False(t, data.User.IsMaker)

	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		c := cookieByName(rec, name)
		require.NotNil(t, c, name)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
		assert.Equal(t, "/", c.Path)
		assert.NotEmpty(t, c.Value)
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t, true)
	env.register("c1@example.com")

	rec := env.do(http.MethodPost, "/user/login", map[string]string{"email": "c1@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decode(t, rec).Message)
	assert.Nil(t, cookieByName(rec, accessTokenCookie))

	rec = env.do(http.MethodPost, "/user/login", map[string]string{"email": "nobody@example.com", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decode(t, rec).Message)

	env.disable("c1@example.com")
	rec = env.do(http.MethodPost, "/user/login", map[string]string{"email": "c1@example.com", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "account disabled", decode(t, rec).Message)
}

func TestGate(t *testing.T) {
	env := newTestEnv(t, true)
	env.register("c1@example.com")
	c1 := env.login("c1@example.com")

	t.Run("no token", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/user/employees", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "no token provided", decode(t, rec).Message)
	})

	t.Run("malformed token", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/user/employees", nil, &http.Cookie{Name: accessTokenCookie, Value: "garbage"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid token", decode(t, rec).Message)
	})

	t.Run("refresh token used as access token", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/user/employees", nil, &http.Cookie{Name: accessTokenCookie, Value: c1[1].Value})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid token", decode(t, rec).Message)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
		req.Header.Set("Authorization", "Bearer "+c1[0].Value)
		rec := env.serve(req, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown subject", func(t *testing.T) {
		ghost := &domain.Account{ID: uuid.New(), Email: "ghost@example.com"}
		access, _, err := env.tokens.Issue(ghost, token.KindAccess, time.Minute)
		require.NoError(t, err)

		rec := env.do(http.MethodGet, "/user/employees", nil, &http.Cookie{Name: accessTokenCookie, Value: access})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "user not found", decode(t, rec).Message)
	})

	t.Run("register maker is not anonymous", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/user/register/maker/", map[string]string{"email": "m1@example.com", "password": testPassword})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "no token provided", decode(t, rec).Message)
	})

	t.Run("anonymous path with trailing slash", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/user/login/", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("allow-listed path without handler", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/user/google-auth/", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown protected path", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/user/unknown", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	// 最后两个子测试会改变时钟和账号状态
	t.Run("expired token", func(t *testing.T) {
		env.advance(6 * time.Minute)
		defer env.advance(-6 * time.Minute)

		rec := env.do(http.MethodGet, "/user/employees", nil, c1...)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "token expired", decode(t, rec).Message)
	})

	t.Run("disabled account", func(t *testing.T) {
		env.disable("c1@example.com")

		rec := env.do(http.MethodGet, "/user/employees", nil, c1...)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "account disabled", decode(t, rec).Message)
	})
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t, true)

	check := func(rec *httptest.ResponseRecorder) {
		t.Helper()
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Logged out successfully", decode(t, rec).Message)
		for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
			c := cookieByName(rec, name)
			require.NotNil(t, c, name)
			assert.Empty(t, c.Value)
			assert.Less(t, c.MaxAge, 0)
			assert.Equal(t, "/", c.Path)
		}
	}

	// 没有登录过
	check(env.do(http.MethodPost, "/user/logout/", nil))

	env.register("c1@example.com")
	c1 := env.login("c1@example.com")
	check(env.do(http.MethodPost, "/user/logout", nil, c1...))
	check(env.do(http.MethodPost, "/user/logout", nil, &http.Cookie{Name: accessTokenCookie, Value: "garbage"}))
}

func TestRefreshToken(t *testing.T) {
	env := newTestEnv(t, true)
	env.register("c1@example.com")
	c1 := env.login("c1@example.com")
	refresh := c1[1]

	t.Run("missing cookie", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/user/refresh-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "refresh token required", decode(t, rec).Message)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("invalid token clears cookies", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/user/refresh-token", nil, &http.Cookie{Name: refreshTokenCookie, Value: "garbage"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid refresh token", decode(t, rec).Message)

		for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
			c := cookieByName(rec, name)
			require.NotNil(t, c, name)
			assert.Empty(t, c.Value)
		}
	})

	t.Run("access token cannot refresh", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/user/refresh-token", nil, &http.Cookie{Name: refreshTokenCookie, Value: c1[0].Value})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh after access expiry", func(t *testing.T) {
		env.advance(6 * time.Minute)

		rec := env.do(http.MethodGet, "/user/me", nil, c1...)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = env.do(http.MethodPost, "/user/refresh-token/", nil, refresh)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Nil(t, cookieByName(rec, refreshTokenCookie))

		access := cookieByName(rec, accessTokenCookie)
		require.NotNil(t, access)
		assert.True(t, access.HttpOnly)

		oldClaims, err := token.NewService(env.cfg.JWT.Secret, time.Hour, time.Hour).Verify(refresh.Value)
		require.NoError(t, err)
		newClaims, err := env.tokens.VerifyKind(access.Value, token.KindAccess)
		require.NoError(t, err)
		assert.Equal(t, oldClaims.Subject, newClaims.Subject)

		rec = env.do(http.MethodGet, "/user/me", nil, access)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRefreshDisabledAccount(t *testing.T) {
	t.Run("checked", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.register("c1@example.com")
		c1 := env.login("c1@example.com")
		env.disable("c1@example.com")

		rec := env.do(http.MethodPost, "/user/refresh-token", nil, c1[1])
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "account disabled", decode(t, rec).Message)
		require.NotNil(t, cookieByName(rec, refreshTokenCookie))
		assert.Empty(t, cookieByName(rec, refreshTokenCookie).Value)
	})

	t.Run("unchecked", func(t *testing.T) {
		env := newTestEnv(t, false)
		env.register("c1@example.com")
		c1 := env.login("c1@example.com")
		env.disable("c1@example.com")

		rec := env.do(http.MethodPost, "/user/refresh-token", nil, c1[1])
		assert.Equal(t, http.StatusOK, rec.Code)

		// 新的 access token 仍然会被认证中间件拒绝
		access := cookieByName(rec, accessTokenCookie)
		require.NotNil(t, access)
		rec = env.do(http.MethodGet, "/user/me", nil, access)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t, true)
	env.register("c1@example.com")

	rec := env.do(http.MethodPost, "/user/reset-password/require", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.mailer.count())

	rec = env.do(http.MethodPost, "/user/reset-password/require/", map[string]string{"email": "c1@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, env.mailer.count())

	mail := env.mailer.last()
	assert.Equal(t, domain.MailTypeResetPassword, mail.Type)
	data, ok := mail.Data.(domain.ResetPasswordMailData)
	require.True(t, ok)
	assert.Len(t, data.OTP, 6)
	assert.Equal(t, 15, data.Expiration)

	wrong := "000000"
	if data.OTP == wrong {
		wrong = "111111"
	}
	rec = env.do(http.MethodPost, "/user/reset-password/confirm", map[string]string{"email": "c1@example.com", "otp": wrong, "password": "new-password"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/user/reset-password/confirm", map[string]string{"email": "c1@example.com", "otp": data.OTP, "password": "new-password"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// 验证码只能使用一次
	rec = env.do(http.MethodPost, "/user/reset-password/confirm", map[string]string{"email": "c1@example.com", "otp": data.OTP, "password": "other-password"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/user/login", map[string]string{"email": "c1@example.com", "password": "new-password"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodPost, "/user/login", map[string]string{"email": "c1@example.com", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// requestResetCode 申请重置密码并返回邮件中的验证码
func (e *testEnv) requestResetCode(email string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/user/reset-password/require", map[string]string{"email": email})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())

	data, ok := e.mailer.last().Data.(domain.ResetPasswordMailData)
	require.True(e.t, ok)
	return data.OTP
}

func TestResetPasswordLocksAfterWrongCodes(t *testing.T) {
	env := newTestEnv(t, true)
	env.register("c1@example.com")
	code := env.requestResetCode("c1@example.com")

	guesses := 0
	for i := 0; guesses < env.cfg.OTP.MaxAttempts; i++ {
		guess := strings.Repeat(strconv.Itoa(i%10), 6)
		if guess == code {
			continue
		}
		guesses++
		rec := env.do(http.MethodPost, "/user/reset-password/confirm", map[string]string{"email": "c1@example.com", "otp": guess, "password": "new-password"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid or expired code", decode(t, rec).Message)
	}

	rec := env.do(http.MethodPost, "/user/reset-password/confirm", map[string]string{"email": "c1@example.com", "otp": code, "password": "new-password"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/user/login", map[string]string{"email": "c1@example.com", "password": testPassword})
	assert.Equal(t, http.StatusOK, rec.Code)

	// 重新申请的验证码可以正常使用
	code = env.requestResetCode("c1@example.com")
	rec = env.do(http.MethodPost, "/user/reset-password/confirm", map[string]string{"email": "c1@example.com", "otp": code, "password": "new-password"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMultibytePasswordTooLong(t *testing.T) {
	// 30 个汉字通过字符数校验，但有 90 字节
	tooLong := strings.Repeat("密", 30)
	const msg = "password must be at most 72 bytes"

	env := newTestEnv(t, true)

	rec := env.do(http.MethodPost, "/user/register", map[string]string{"email": "c2@example.com", "password": tooLong})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msg, decode(t, rec).Message)

	rec = env.do(http.MethodPost, "/user/register", map[string]string{"email": "c2@example.com", "password": strings.Repeat("密", 24)})
	assert.Equal(t, http.StatusCreated, rec.Code)

	env.register("c1@example.com")
	c1 := env.login("c1@example.com")

	rec = env.do(http.MethodPost, "/user/login", map[string]string{"email": "c1@example.com", "password": tooLong})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/user/register/maker", map[string]string{"email": "m1@example.com", "password": tooLong}, c1...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msg, decode(t, rec).Message)

	rec = env.do(http.MethodPatch, "/user/me/password", map[string]string{"old_password": testPassword, "new_password": tooLong}, c1...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msg, decode(t, rec).Message)

	code := env.requestResetCode("c1@example.com")
	rec = env.do(http.MethodPost, "/user/reset-password/confirm", map[string]string{"email": "c1@example.com", "otp": code, "password": tooLong})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msg, decode(t, rec).Message)

	// 密码过长不会作废验证码
	rec = env.do(http.MethodPost, "/user/reset-password/confirm", map[string]string{"email": "c1@example.com", "otp": code, "password": "new-password"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
