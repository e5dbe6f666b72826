package feed

import (
	"errors"

	"github.com/suryabasnet/murmur/internal/models"
	"gorm.io/gorm"
)

// Vote records the viewer's one-shot vote. Preconditions, each checked
// before any mutation:
//
//  1. the poll exists and belongs to the given post
//  2. the viewer is not blocked relative to the post author
//  3. the choice belongs to the poll
//  4. the viewer has not voted on this poll
//
// The vote row insert is the only mutation; choice counts are derived by
// counting rows, so there is no counter to drift. The pre-check for (4) is
// racy by nature; the (poll, voter) unique index is the final arbiter and
// its violation comes back as Conflict, never as a raw storage fault.
// Votes cannot be changed or retracted.
func (s *Service) Vote(viewer, postID, pollID, choiceID uint) error {
	var poll models.Poll
	if err := s.DB.First(&poll, pollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNotFound("poll %d not found", pollID)
		}
		return errTransient("failed to load poll", err)
	}
	if poll.PostID != postID {
		return errNotFound("poll %d does not belong to post %d", pollID, postID)
	}

	post, err := s.loadPost(postID)
	if err != nil {
		return err
	}
	if post.Deleted {
		return errNotFound("post %d not found", postID)
	}
	blocked, err := s.IsBlocked(viewer, post.AuthorID)
	if err != nil {
		return err
	}
	if blocked {
		return errForbidden("cannot vote on this poll")
	}

	var choice models.PollChoice
	if err := s.DB.First(&choice, choiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNotFound("choice %d not found", choiceID)
		}
		return errTransient("failed to load choice", err)
	}
	if choice.PollID != pollID {
		return errNotFound("choice %d does not belong to poll %d", choiceID, pollID)
	}

	var existing int64
	err = s.DB.Model(&models.PollVote{}).
		Where("poll_id = ? AND voter_id = ?", pollID, viewer).
		Count(&existing).Error
	if err != nil {
		return errTransient("vote lookup failed", err)
	}
	if existing > 0 {
		return errConflict("already voted")
	}

	vote := models.PollVote{PollID: pollID, VoterID: viewer, ChoiceID: choiceID}
	if err := s.DB.Create(&vote).Error; err != nil {
		if isDuplicate(err) {
			return errConflict("already voted")
		}
		return errTransient("failed to record vote", err)
	}
	return nil
}
