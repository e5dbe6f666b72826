package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/suryabasnet/murmur/internal/feed"
	murmurhttp "github.com/suryabasnet/murmur/internal/http"
	"github.com/suryabasnet/murmur/internal/models"
	"github.com/suryabasnet/murmur/internal/viewcache"
)

func newTestRouter(t *testing.T) (*gin.Engine, *feed.Service) {
	t.Helper()
	t.Setenv("X_ADMIN_TOKEN", "test-admin-token")
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	svc := feed.NewService(db, viewcache.NewMemory(), nil)
	router := gin.New()
	murmurhttp.SetupRoutes(router, svc, nil)
	return router, svc
}

func TestCreatePostBindsAttachments(t *testing.T) {
	router, svc := newTestRouter(t)
	account := models.Account{Username: "alice"}
	require.NoError(t, svc.DB.Create(&account).Error)

	body, err := json.Marshal(gin.H{
		"content": "with media",
		"attachments": []gin.H{
			{"url": "https://cdn.example.com/a.png", "mimeType": "image/png"},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/posts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", strconv.FormatUint(uint64(account.ID), 10))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var attachments []models.Attachment
	require.NoError(t, svc.DB.Find(&attachments).Error)
	require.Len(t, attachments, 1)
	assert.Equal(t, "https://cdn.example.com/a.png", attachments[0].URL)
	assert.Equal(t, "image/png", attachments[0].MimeType)
	assert.NotZero(t, attachments[0].PostID)
}
