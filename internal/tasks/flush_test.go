package tasks_test

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/suryabasnet/murmur/internal/models"
	"github.com/suryabasnet/murmur/internal/tasks"
	"github.com/suryabasnet/murmur/internal/viewcache"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedPost(t *testing.T, db *gorm.DB) *models.Post {
	t.Helper()
	account := models.Account{Username: "author"}
	require.NoError(t, db.Create(&account).Error)
	content := "hello"
	post := models.Post{AuthorID: account.ID, Content: &content}
	require.NoError(t, db.Create(&post).Error)
	return &post
}

func TestViewFlusherAppliesCounts(t *testing.T) {
	db := newTestDB(t)
	post := seedPost(t, db)

	cache := viewcache.NewMemory()
	cache.Record([]uint{post.ID}, "u:1")
	cache.Record([]uint{post.ID}, "u:2")

	flusher := &tasks.ViewFlusher{DB: db, Cache: cache}
	require.NoError(t, flusher.Run(context.Background()))

	var got models.Post
	require.NoError(t, db.First(&got, post.ID).Error)
	assert.Equal(t, int64(2), got.Views)

	// Drained clean; a second run is a no-op.
	require.NoError(t, flusher.Run(context.Background()))
	require.NoError(t, db.First(&got, post.ID).Error)
	assert.Equal(t, int64(2), got.Views)
}

func TestViewFlusherRestoresBatchOnFailure(t *testing.T) {
	db := newTestDB(t)
	post := seedPost(t, db)

	cache := viewcache.NewMemory()
	cache.Record([]uint{post.ID}, "u:1")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	flusher := &tasks.ViewFlusher{DB: db, Cache: cache}
	require.Error(t, flusher.Run(context.Background()))

	// The drained batch went back into the cache for the next interval.
	assert.Equal(t, map[uint]int64{post.ID: 1}, cache.DrainAll())
}
