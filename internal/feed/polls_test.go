package feed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suryabasnet/murmur/internal/feed"
)

func TestVoteHappyPathAndDerivedCounts(t *testing.T) {
	svc, _ := newTestService(t)
	alice := createAccount(t, svc, "alice")
	bob := createAccount(t, svc, "bob")
	carol := createAccount(t, svc, "carol")

	post, poll := createPollPost(t, svc, alice, "pick one", "red", "green", "blue")
	require.Len(t, poll.Choices, 3)

	require.NoError(t, svc.Vote(bob, post.ID, poll.ID, poll.Choices[0].ID))
	require.NoError(t, svc.Vote(carol, post.ID, poll.ID, poll.Choices[1].ID))

	view, err := svc.FetchPost(bob, post.ID, "fp")
	require.NoError(t, err)
	require.NotNil(t, view.Poll)
	require.Len(t, view.Poll.Choices, 3)

	assert.Equal(t, int64(1), view.Poll.Choices[0].Votes)
	assert.Equal(t, int64(1), view.Poll.Choices[1].Votes)
	assert.Equal(t, int64(0), view.Poll.Choices[2].Votes)

	// bob sees his own vote; alice, who didn't vote, sees none.
	require.NotNil(t, view.Poll.VotedChoiceID)
	assert.Equal(t, poll.Choices[0].ID, *view.Poll.VotedChoiceID)

	view, err = svc.FetchPost(alice, post.ID, "fp")
	require.NoError(t, err)
	assert.Nil(t, view.Poll.VotedChoiceID)
}

func TestVoteOnceOnly(t *testing.T) {
	svc, _ := newTestService(t)
	alice := createAccount(t, svc, "alice")
	bob := createAccount(t, svc, "bob")

	post, poll := createPollPost(t, svc, alice, "pick", "a", "b")
	require.NoError(t, svc.Vote(bob, post.ID, poll.ID, poll.Choices[0].ID))

	// No second vote, not even for a different choice.
	err := svc.Vote(bob, post.ID, poll.ID, poll.Choices[1].ID)
	assert.Equal(t, feed.KindConflict, feed.KindOf(err))

	view, err := svc.FetchPost(bob, post.ID, "fp")
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Poll.Choices[0].Votes)
	assert.Equal(t, int64(0), view.Poll.Choices[1].Votes)
}

func TestVotePreconditions(t *testing.T) {
	svc, _ := newTestService(t)
	alice := createAccount(t, svc, "alice")
	bob := createAccount(t, svc, "bob")

	post, poll := createPollPost(t, svc, alice, "pick", "a", "b")
	other, otherPoll := createPollPost(t, svc, alice, "other", "x", "y")

	// Poll must exist.
	err := svc.Vote(bob, post.ID, 9999, poll.Choices[0].ID)
	assert.Equal(t, feed.KindNotFound, feed.KindOf(err))

	// Poll must belong to the given post.
	err = svc.Vote(bob, post.ID, otherPoll.ID, otherPoll.Choices[0].ID)
	assert.Equal(t, feed.KindNotFound, feed.KindOf(err))

	// Choice must belong to the poll.
	err = svc.Vote(bob, post.ID, poll.ID, otherPoll.Choices[0].ID)
	assert.Equal(t, feed.KindNotFound, feed.KindOf(err))

	// Blocked viewers cannot vote.
	block(t, svc, alice, bob)
	err = svc.Vote(bob, post.ID, poll.ID, poll.Choices[0].ID)
	assert.Equal(t, feed.KindForbidden, feed.KindOf(err))

	// Nothing was recorded along the way.
	view, err := svc.FetchPost(alice, other.ID, "fp")
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.Poll.Choices[0].Votes)
}
