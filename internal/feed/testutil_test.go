package feed_test

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/suryabasnet/murmur/internal/feed"
	"github.com/suryabasnet/murmur/internal/models"
	"github.com/suryabasnet/murmur/internal/viewcache"
)

// newTestService builds a service over a fresh in-memory SQLite database
// with a memory view cache and no event publisher.
func newTestService(t *testing.T) (*feed.Service, *viewcache.Memory) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One in-memory SQLite database per connection; pin the pool to one.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))

	views := viewcache.NewMemory()
	return feed.NewService(db, views, nil), views
}

func createAccount(t *testing.T, svc *feed.Service, username string) uint {
	t.Helper()
	account := models.Account{Username: username}
	require.NoError(t, svc.DB.Create(&account).Error)
	return account.ID
}

func createPost(t *testing.T, svc *feed.Service, author uint, content string, commentTo *uint) *models.Post {
	t.Helper()
	post, err := svc.CreatePost(author, feed.CreatePostInput{Content: content, CommentTo: commentTo})
	require.NoError(t, err)
	return post
}

func createPollPost(t *testing.T, svc *feed.Service, author uint, content string, choices ...string) (*models.Post, *models.Poll) {
	t.Helper()
	post, err := svc.CreatePost(author, feed.CreatePostInput{Content: content, PollChoices: choices})
	require.NoError(t, err)
	var poll models.Poll
	require.NoError(t, svc.DB.Preload("Choices", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Where("post_id = ?", post.ID).First(&poll).Error)
	return post, &poll
}

func block(t *testing.T, svc *feed.Service, blocker, blocked uint) {
	t.Helper()
	require.NoError(t, svc.BlockUser(blocker, blocked))
}
