package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChecker(t *testing.T) {
	a, err := NewChecker("c1@example.com", "secret-pass")
	require.NoError(t, err)

	assert.True(t, a.IsChecker)
	assert.False(t, a.IsMaker)
	assert.True(t, a.IsActive)
	assert.True(t, a.EmailVerified)
	assert.Nil(t, a.CreatedBy)
	assert.Equal(t, "c1@example.com", a.Username)
	assert.NotEqual(t, "secret-pass", a.PasswordHash)
	assert.Equal(t, RoleChecker, a.Role())
}

func TestNewMaker(t *testing.T) {
	checkerID := uuid.New()
	m, err := NewMaker("m1@example.com", "secret-pass", checkerID)
	require.NoError(t, err)

	assert.True(t, m.IsMaker)
	assert.False(t, m.IsChecker)
	assert.True(t, m.IsCreatedBy(checkerID))
	assert.False(t, m.IsCreatedBy(uuid.New()))
	assert.Equal(t, RoleMaker, m.Role())
}

func TestNewSuperuser(t *testing.T) {
	s, err := NewSuperuser("root@example.com", "secret-pass")
	require.NoError(t, err)

	assert.True(t, s.IsStaff)
	assert.True(t, s.IsSuperuser)
	assert.True(t, s.IsActive)
	assert.Equal(t, RoleSuperuser, s.Role())
}

func TestVerifyPassword(t *testing.T) {
	a, err := NewChecker("c1@example.com", "right")
	require.NoError(t, err)

	ok, err := a.VerifyPassword("right")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.VerifyPassword("wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	a.PasswordHash = "not-a-bcrypt-hash"
	ok, err = a.VerifyPassword("right")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestPasswordByteLimit(t *testing.T) {
	// 24 个汉字正好 72 字节，25 个超出 bcrypt 的上限
	atLimit := strings.Repeat("密", 24)
	tooLong := strings.Repeat("密", 25)

	a, err := NewChecker("c1@example.com", atLimit)
	require.NoError(t, err)
	ok, err := a.VerifyPassword(atLimit)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = NewChecker("c2@example.com", tooLong)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = NewMaker("m1@example.com", tooLong, uuid.New())
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	hash := a.PasswordHash
	assert.ErrorIs(t, a.SetPassword(tooLong), ErrPasswordTooLong)
	assert.Equal(t, hash, a.PasswordHash)

	ok, err = a.VerifyPassword(tooLong)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRoleWithoutFlags(t *testing.T) {
	assert.Equal(t, RoleNone, (&Account{}).Role())
	assert.Equal(t, RoleAdmin, (&Account{IsStaff: true}).Role())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(ErrDuplicateEmail))
	assert.Equal(t, KindAuthentication, KindOf(Wrap(KindAuthentication, "token expired", errors.New("exp"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	err := Wrap(KindAuthorization, "not authorized to update this employee's status", ErrForbidden)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "not authorized to update this employee's status", MessageOf(err))
	assert.Equal(t, "internal server error", MessageOf(errors.New("boom")))
}
