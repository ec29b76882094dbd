package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"school_ledger/internal/domain"
	"school_ledger/internal/middleware"
	"school_ledger/internal/testutil"
	"school_ledger/internal/utils"
)

const secret = "test-secret"

func newEngine(gdb *gorm.DB, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected",
		middleware.JWTAuthMiddleware(secret),
		middleware.RequireRoles(gdb, roles...),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint("userID"), "role": c.GetString("role")})
		})
	return r
}

func createUser(t *testing.T, gdb *gorm.DB, name, role string) (domain.User, string) {
	t.Helper()
	u := domain.User{Username: name, Password: "x", Role: role}
	require.NoError(t, gdb.Create(&u).Error)
	token, err := utils.GenerateJWT(u.ID, u.Role, secret)
	require.NoError(t, err)
	return u, token
}

func get(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	gdb := testutil.NewDB(t)
	r := newEngine(gdb, domain.RoleAdmin, domain.RoleBursar)
	_, token := createUser(t, gdb, "bursar", domain.RoleBursar)

	w := get(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Missing or invalid Authorization header"}`, w.Body.String())

	w = get(r, "Token "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := utils.GenerateJWT(1, domain.RoleAdmin, "other-secret")
	require.NoError(t, err)
	w = get(r, "Bearer "+other)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invalid or expired token"}`, w.Body.String())

	w = get(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":1,"role":"bursar"}`, w.Body.String())
}

func TestRequireRoles(t *testing.T) {
	gdb := testutil.NewDB(t)
	r := newEngine(gdb, domain.RoleAdmin)
	admin, adminToken := createUser(t, gdb, "admin", domain.RoleAdmin)
	_, viewerToken := createUser(t, gdb, "viewer", domain.RoleViewer)

	w := get(r, "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, "Bearer "+viewerToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Insufficient permissions"}`, w.Body.String())

	// The token still says admin, the database no longer does
	require.NoError(t, gdb.Model(&domain.User{}).Where("id = ?", admin.ID).Update("role", domain.RoleViewer).Error)
	w = get(r, "Bearer "+adminToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	require.NoError(t, gdb.Delete(&domain.User{}, admin.ID).Error)
	w = get(r, "Bearer "+adminToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
