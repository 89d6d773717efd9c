package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/flosla/services/registration/config"
	"example.com/flosla/services/registration/internal/models"
	"example.com/flosla/services/registration/internal/services"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *services.AdminService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.SetupModels(db))

	adminService := services.NewAdminService(db, db, config.AuthConfig{
		JWTSecret:   "test-secret",
		TokenExpiry: time.Hour,
	})

	router := gin.New()
	router.GET("/protected", AdminAuth(adminService), func(c *gin.Context) {
		id := c.MustGet(AdminIDContextKey).(uuid.UUID)
		c.JSON(http.StatusOK, gin.H{"admin_id": id.String()})
	})

	return router, adminService
}

func getProtected(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestAdminAuthValidToken(t *testing.T) {
	router, adminService := newAuthRouter(t)

	admin, token, err := adminService.Register(context.Background(), "staff@example.com", "correct horse battery")
	require.NoError(t, err)

	recorder := getProtected(router, "Bearer "+token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), admin.ID.String())
}

func TestAdminAuthMissingHeader(t *testing.T) {
	router, _ := newAuthRouter(t)

	recorder := getProtected(router, "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAdminAuthMalformedHeader(t *testing.T) {
	router, adminService := newAuthRouter(t)

	_, token, err := adminService.Register(context.Background(), "staff@example.com", "correct horse battery")
	require.NoError(t, err)

	recorder := getProtected(router, "Token "+token)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAdminAuthInvalidToken(t *testing.T) {
	router, _ := newAuthRouter(t)

	recorder := getProtected(router, "Bearer not.a.token")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
