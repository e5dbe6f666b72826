package feed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suryabasnet/murmur/internal/feed"
	"github.com/suryabasnet/murmur/internal/models"
)

func TestCreatePostValidation(t *testing.T) {
	svc, _ := newTestService(t)
	alice := createAccount(t, svc, "alice")

	_, err := svc.CreatePost(alice, feed.CreatePostInput{Content: "   "})
	assert.Equal(t, feed.KindConflict, feed.KindOf(err))

	_, err = svc.CreatePost(alice, feed.CreatePostInput{Content: "hi", PollChoices: []string{"only one"}})
	assert.Equal(t, feed.KindConflict, feed.KindOf(err))

	missing := uint(9999)
	_, err = svc.CreatePost(alice, feed.CreatePostInput{Content: "hi", CommentTo: &missing})
	assert.Equal(t, feed.KindNotFound, feed.KindOf(err))
}

func TestReplyToBlockedAuthorForbidden(t *testing.T) {
	svc, _ := newTestService(t)
	alice := createAccount(t, svc, "alice")
	bob := createAccount(t, svc, "bob")

	post := createPost(t, svc, alice, "root", nil)
	block(t, svc, alice, bob)

	_, err := svc.CreatePost(bob, feed.CreatePostInput{Content: "reply", CommentTo: &post.ID})
	assert.Equal(t, feed.KindForbidden, feed.KindOf(err))
}

func TestEditPostOwnerOnly(t *testing.T) {
	svc, _ := newTestService(t)
	alice := createAccount(t, svc, "alice")
	bob := createAccount(t, svc, "bob")

	post := createPost(t, svc, alice, "original", nil)

	_, err := svc.EditPost(bob, post.ID, "hijacked")
	assert.Equal(t, feed.KindForbidden, feed.KindOf(err))

	edited, err := svc.EditPost(alice, post.ID, "updated")
	require.NoError(t, err)
	assert.Equal(t, "updated", *edited.Content)
}

func TestLikeUnlikeCounter(t *testing.T) {
	svc, _ := newTestService(t)
	alice := createAccount(t, svc, "alice")
	bob := createAccount(t, svc, "bob")

	post := createPost(t, svc, alice, "likeable", nil)

	require.NoError(t, svc.LikePost(bob, post.ID))

	var got models.Post
	require.NoError(t, svc.DB.First(&got, post.ID).Error)
	assert.Equal(t, 1, got.LikedBy)

	// Second like is a conflict and leaves the counter alone.
	err := svc.LikePost(bob, post.ID)
	assert.Equal(t, feed.KindConflict, feed.KindOf(err))
	require.NoError(t, svc.DB.First(&got, post.ID).Error)
	assert.Equal(t, 1, got.LikedBy)

	require.NoError(t, svc.UnlikePost(bob, post.ID))
	require.NoError(t, svc.DB.First(&got, post.ID).Error)
	assert.Equal(t, 0, got.LikedBy)

	// Unliking again is NotFound.
	err = svc.UnlikePost(bob, post.ID)
	assert.Equal(t, feed.KindNotFound, feed.KindOf(err))
}

func TestLikeBlockedForbidden(t *testing.T) {
	svc, _ := newTestService(t)
	alice := createAccount(t, svc, "alice")
	bob := createAccount(t, svc, "bob")

	post := createPost(t, svc, alice, "mine", nil)
	block(t, svc, alice, bob)

	err := svc.LikePost(bob, post.ID)
	assert.Equal(t, feed.KindForbidden, feed.KindOf(err))
}

func TestDeletePostCascade(t *testing.T) {
	svc, _ := newTestService(t)
	alice := createAccount(t, svc, "alice")
	bob := createAccount(t, svc, "bob")

	post, poll := createPollPost(t, svc, alice, "with poll", "yes", "no")
	require.NoError(t, svc.LikePost(bob, post.ID))
	require.NoError(t, svc.Vote(bob, post.ID, poll.ID, poll.Choices[0].ID))
	require.NoError(t, svc.DB.Create(&models.Attachment{PostID: post.ID, URL: "https://cdn/x.png"}).Error)
	require.NoError(t, svc.Announce(post.ID))

	require.NoError(t, svc.DeletePost(alice, post.ID, false))

	var got models.Post
	require.NoError(t, svc.DB.First(&got, post.ID).Error)
	assert.True(t, got.Deleted)
	assert.Nil(t, got.Content)
	assert.Equal(t, 0, got.LikedBy)

	for _, probe := range []struct {
		name  string
		model any
		where string
		arg   uint
	}{
		{"likes", &models.Like{}, "post_id = ?", post.ID},
		{"attachments", &models.Attachment{}, "post_id = ?", post.ID},
		{"announcements", &models.Announcement{}, "post_id = ?", post.ID},
		{"polls", &models.Poll{}, "post_id = ?", post.ID},
		{"poll_choices", &models.PollChoice{}, "poll_id = ?", poll.ID},
		{"poll_votes", &models.PollVote{}, "poll_id = ?", poll.ID},
	} {
		var n int64
		require.NoError(t, svc.DB.Model(probe.model).Where(probe.where, probe.arg).Count(&n).Error)
		assert.Zero(t, n, "%s rows must not survive the cascade", probe.name)
	}

	// Second delete reports NotFound, and interacting with the tombstone
	// fails the same way.
	assert.Equal(t, feed.KindNotFound, feed.KindOf(svc.DeletePost(alice, post.ID, false)))
	assert.Equal(t, feed.KindNotFound, feed.KindOf(svc.LikePost(bob, post.ID)))
}

func TestDeletePostOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	alice := createAccount(t, svc, "alice")
	bob := createAccount(t, svc, "bob")

	post := createPost(t, svc, alice, "mine", nil)

	err := svc.DeletePost(bob, post.ID, false)
	assert.Equal(t, feed.KindForbidden, feed.KindOf(err))

	// Moderation bypasses the owner check.
	require.NoError(t, svc.DeletePost(bob, post.ID, true))
}

func TestFollowDuplicateConflict(t *testing.T) {
	svc, _ := newTestService(t)
	alice := createAccount(t, svc, "alice")
	bob := createAccount(t, svc, "bob")

	require.NoError(t, svc.Follow(alice, bob))
	assert.Equal(t, feed.KindConflict, feed.KindOf(svc.Follow(alice, bob)))
	assert.Equal(t, feed.KindForbidden, feed.KindOf(svc.Follow(alice, alice)))

	require.NoError(t, svc.Unfollow(alice, bob))
	assert.Equal(t, feed.KindNotFound, feed.KindOf(svc.Unfollow(alice, bob)))
}
