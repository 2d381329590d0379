package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/store"
)

func newTestAccounts(t *testing.T) (*Accounts, *store.Memory) {
	t.Helper()
	st := newTestStore(t)
	return NewAccounts(st, testTokens()), st
}

func TestRegisterAndLogin(t *testing.T) {
	a, _ := newTestAccounts(t)
	ctx := context.Background()

	user, pair, err := a.Register(ctx, RegisterInput{Email: " New@Uni.Test ", Password: "longenough", DisplayName: "New Student"})
	require.NoError(t, err)
	assert.Equal(t, "new@uni.test", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.NotEmpty(t, pair.AccessToken)

	_, _, err = a.Register(ctx, RegisterInput{Email: "NEW@uni.test", Password: "longenough", DisplayName: "Again"})
	assertStatus(t, err, http.StatusConflict)

	logged, pair, err := a.Login(ctx, LoginInput{Email: "new@uni.test", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	claims, err := a.Tokens().ParseToken(pair.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)

	padded, _, err := a.Login(ctx, LoginInput{Email: "  NEW@Uni.Test ", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, padded.ID)

	_, _, err = a.Login(ctx, LoginInput{Email: "new@uni.test", Password: "wrong-password"})
	assertStatus(t, err, http.StatusUnauthorized)
	_, _, err = a.Login(ctx, LoginInput{Email: "ghost@uni.test", Password: "whatever"})
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestRegister_TrimsDisplayName(t *testing.T) {
	a, _ := newTestAccounts(t)
	user, _, err := a.Register(context.Background(), RegisterInput{Email: "\tpad@uni.test\n", Password: "longenough", DisplayName: "  Padded Name "})
	require.NoError(t, err)
	assert.Equal(t, "pad@uni.test", user.Email)
	assert.Equal(t, "Padded Name", user.DisplayName)
}

func TestRegister_Validation(t *testing.T) {
	a, _ := newTestAccounts(t)
	_, _, err := a.Register(context.Background(), RegisterInput{Email: "bad", Password: "short", DisplayName: " "})
	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, svcErr.Status)
	assert.Contains(t, svcErr.Fields, "email")
	assert.Contains(t, svcErr.Fields, "password")
	assert.Contains(t, svcErr.Fields, "displayName")
}

func TestLogin_DemoAccount(t *testing.T) {
	a, st := newTestAccounts(t)
	ctx := context.Background()
	user, _, err := a.Login(ctx, LoginInput{Email: "admin@geekshub.local", Password: DemoPassword})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)

	stored, err := st.GetUser(ctx, "admin1")
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestRefresh(t *testing.T) {
	a, _ := newTestAccounts(t)
	ctx := context.Background()
	_, pair, err := a.Login(ctx, LoginInput{Email: "john.doe@geekshub.local", Password: DemoPassword})
	require.NoError(t, err)

	next, err := a.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)

	_, err = a.Refresh(ctx, pair.AccessToken)
	assertStatus(t, err, http.StatusUnauthorized)

	orphan, err := a.Tokens().CreateRefreshToken("deleted-user")
	require.NoError(t, err)
	_, err = a.Refresh(ctx, orphan)
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestResolveExternal_ProvisionsOnce(t *testing.T) {
	a, st := newTestAccounts(t)
	ctx := context.Background()
	identity := ExternalIdentity{Subject: "ext-1", Email: "Kim@Uni.Test", Roles: []string{"MODERATOR", "OFFLINE_ACCESS"}}

	first, err := a.ResolveExternal(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, "Kim", first.Name)
	assert.Equal(t, "kim@uni.test", first.Email)
	assert.Equal(t, []string{models.RoleStudent, models.RoleModerator}, first.Roles)
	assert.True(t, first.HasAnyRole(models.RoleAdmin, models.RoleModerator))

	second, err := a.ResolveExternal(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)

	_, total, err := st.ListUsers(ctx, store.UserFilter{Search: "kim"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSetRole(t *testing.T) {
	a, _ := newTestAccounts(t)
	ctx := context.Background()

	user, err := a.SetRole(ctx, admin, "u2", SetRoleInput{Role: models.RoleModerator})
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, user.Role)

	_, err = a.SetRole(ctx, admin, "admin1", SetRoleInput{Role: models.RoleStudent})
	assertStatus(t, err, http.StatusBadRequest)

	_, err = a.SetRole(ctx, admin, "u2", SetRoleInput{Role: "ROOT"})
	assertStatus(t, err, http.StatusBadRequest)

	_, err = a.SetRole(ctx, admin, "ghost", SetRoleInput{Role: models.RoleStudent})
	assertStatus(t, err, http.StatusNotFound)
}

func TestListUsers_Paging(t *testing.T) {
	a, _ := newTestAccounts(t)
	items, total, err := a.List(context.Background(), store.UserFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, items, 2)

	items, _, err = a.List(context.Background(), store.UserFilter{Limit: 500})
	require.NoError(t, err)
	assert.Len(t, items, 5)
}
