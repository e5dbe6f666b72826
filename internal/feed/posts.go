package feed

import (
	"errors"
	"log"
	"strings"

	"github.com/suryabasnet/murmur/internal/models"
	"gorm.io/gorm"
)

const maxPostLength = 1000

// CreatePostInput carries everything a new post may come with. Choices, if
// present, become an attached poll (at least two required). Attachments
// reference media that already lives in external storage.
type CreatePostInput struct {
	Content     string
	CommentTo   *uint
	PollChoices []string
	Attachments []models.Attachment
}

// CreatePost validates and inserts a post with its optional poll and
// attachments in one transaction, then fires the "replied" notification
// and the created event outside of it.
func (s *Service) CreatePost(author uint, in CreatePostInput) (*models.Post, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, errConflict("content is required")
	}
	if len(content) > maxPostLength {
		return nil, errConflict("content exceeds %d characters", maxPostLength)
	}
	if len(in.PollChoices) == 1 {
		return nil, errConflict("a poll needs at least 2 choices")
	}

	if in.CommentTo != nil {
		parent, err := s.loadPost(*in.CommentTo)
		if err != nil {
			return nil, err
		}
		blocked, err := s.IsBlocked(author, parent.AuthorID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, errForbidden("cannot reply to this post")
		}
	}

	post := models.Post{
		AuthorID:    author,
		Content:     &content,
		CommentToID: in.CommentTo,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return errTransient("failed to create post", err)
		}
		if len(in.PollChoices) > 0 {
			poll := models.Poll{PostID: post.ID}
			if err := tx.Create(&poll).Error; err != nil {
				return errTransient("failed to create poll", err)
			}
			for _, label := range in.PollChoices {
				choice := models.PollChoice{PollID: poll.ID, Label: label}
				if err := tx.Create(&choice).Error; err != nil {
					return errTransient("failed to create poll choice", err)
				}
			}
		}
		for i := range in.Attachments {
			in.Attachments[i].ID = 0
			in.Attachments[i].PostID = post.ID
			if err := tx.Create(&in.Attachments[i]).Error; err != nil {
				return errTransient("failed to create attachment", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.CommentTo != nil {
		_, nerr := s.Notify(author, models.NotificationReplied, &post.ID, nil)
		logSwallowed("notify replied", nerr)
	}
	if s.Events != nil {
		s.Events.PostCreated(post.ID, post.AuthorID, post.CommentToID)
	}
	return &post, nil
}

// EditPost replaces the content of the author's own post.
func (s *Service) EditPost(author, postID uint, content string) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errConflict("content is required")
	}
	if len(content) > maxPostLength {
		return nil, errConflict("content exceeds %d characters", maxPostLength)
	}

	post, err := s.loadPost(postID)
	if err != nil {
		return nil, err
	}
	if post.Deleted {
		return nil, errNotFound("post %d not found", postID)
	}
	if post.AuthorID != author {
		return nil, errForbidden("not your post")
	}

	if err := s.DB.Model(post).Update("content", content).Error; err != nil {
		return nil, errTransient("failed to edit post", err)
	}
	return post, nil
}

// DeletePost soft-deletes a post: content nulled, deleted flag set, like
// counter zeroed, and every dependent row (likes, poll and its votes,
// attachments, announcement linkage) removed, all in one transaction so a
// half-applied cascade can never be observed. The row itself survives for
// thread integrity. Admin callers pass admin=true to delete on behalf of
// moderation.
func (s *Service) DeletePost(caller, postID uint, admin bool) error {
	post, err := s.loadPost(postID)
	if err != nil {
		return err
	}
	if post.Deleted {
		return errNotFound("post %d not found", postID)
	}
	if !admin && post.AuthorID != caller {
		return errForbidden("not your post")
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"content": nil, "deleted": true, "liked_by": 0}
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Updates(updates).Error; err != nil {
			return errTransient("failed to mark post deleted", err)
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Like{}).Error; err != nil {
			return errTransient("failed to remove likes", err)
		}
		var poll models.Poll
		err := tx.Where("post_id = ?", postID).First(&poll).Error
		if err == nil {
			if err := tx.Where("poll_id = ?", poll.ID).Delete(&models.PollVote{}).Error; err != nil {
				return errTransient("failed to remove poll votes", err)
			}
			if err := tx.Where("poll_id = ?", poll.ID).Delete(&models.PollChoice{}).Error; err != nil {
				return errTransient("failed to remove poll choices", err)
			}
			if err := tx.Delete(&poll).Error; err != nil {
				return errTransient("failed to remove poll", err)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return errTransient("failed to load poll", err)
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Attachment{}).Error; err != nil {
			return errTransient("failed to remove attachments", err)
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Announcement{}).Error; err != nil {
			return errTransient("failed to remove announcement", err)
		}
		return nil
	})
}

// LikePost inserts the (user, post) like pair and eagerly bumps the post's
// approximate counter in the same transaction. The unique index is the
// final arbiter: a duplicate insert surfaces as Conflict. Likes are exact
// and immediate, unlike view counts, because they carry user intent and
// the UI reflects them instantly.
func (s *Service) LikePost(user, postID uint) error {
	post, err := s.loadPost(postID)
	if err != nil {
		return err
	}
	if post.Deleted {
		return errNotFound("post %d not found", postID)
	}
	blocked, err := s.IsBlocked(user, post.AuthorID)
	if err != nil {
		return err
	}
	if blocked {
		return errForbidden("cannot like this post")
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		like := models.Like{PostID: postID, UserID: user}
		if err := tx.Create(&like).Error; err != nil {
			if isDuplicate(err) {
				return errConflict("already liked")
			}
			return errTransient("failed to record like", err)
		}
		err := tx.Model(&models.Post{}).Where("id = ?", postID).
			Update("liked_by", gorm.Expr("liked_by + 1")).Error
		if err != nil {
			return errTransient("failed to update like counter", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	_, nerr := s.Notify(user, models.NotificationLiked, &postID, nil)
	logSwallowed("notify liked", nerr)
	if s.Events != nil {
		s.Events.PostLiked(postID, user)
	}
	return nil
}

// UnlikePost removes the pair and decrements the counter together.
func (s *Service) UnlikePost(user, postID uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, user).Delete(&models.Like{})
		if res.Error != nil {
			return errTransient("failed to remove like", res.Error)
		}
		if res.RowsAffected == 0 {
			return errNotFound("like not found")
		}
		err := tx.Model(&models.Post{}).Where("id = ? AND liked_by > 0", postID).
			Update("liked_by", gorm.Expr("liked_by - 1")).Error
		if err != nil {
			return errTransient("failed to update like counter", err)
		}
		return nil
	})
}

// Announce links a post as a site-wide announcement (trusted callers only;
// the transport layer gates this behind the admin token).
func (s *Service) Announce(postID uint) error {
	post, err := s.loadPost(postID)
	if err != nil {
		return err
	}
	if post.Deleted {
		return errNotFound("post %d not found", postID)
	}
	a := models.Announcement{PostID: postID}
	if err := s.DB.Create(&a).Error; err != nil {
		if isDuplicate(err) {
			return errConflict("already announced")
		}
		return errTransient("failed to create announcement", err)
	}
	return nil
}

// Follow creates a follower -> followee edge and fires the "followed"
// notification.
func (s *Service) Follow(follower, followee uint) error {
	if follower == followee {
		return errForbidden("cannot follow yourself")
	}
	blocked, err := s.IsBlocked(follower, followee)
	if err != nil {
		return err
	}
	if blocked {
		return errForbidden("cannot follow this user")
	}
	edge := models.Follow{FollowerID: follower, FolloweeID: followee}
	if err := s.DB.Create(&edge).Error; err != nil {
		if isDuplicate(err) {
			return errConflict("already following")
		}
		return errTransient("failed to create follow", err)
	}
	_, nerr := s.Notify(follower, models.NotificationFollowed, nil, &followee)
	logSwallowed("notify followed", nerr)
	return nil
}

// Unfollow removes the edge.
func (s *Service) Unfollow(follower, followee uint) error {
	res := s.DB.Where("follower_id = ? AND followee_id = ?", follower, followee).Delete(&models.Follow{})
	if res.Error != nil {
		return errTransient("failed to remove follow", res.Error)
	}
	if res.RowsAffected == 0 {
		return errNotFound("follow not found")
	}
	return nil
}

func logSwallowed(op string, err error) {
	if err != nil {
		log.Printf("%s (swallowed): %v", op, err)
	}
}
