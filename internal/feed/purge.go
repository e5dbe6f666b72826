package feed

import (
	"context"

	"github.com/suryabasnet/murmur/internal/models"
	"gorm.io/gorm"
)

// purgeBatchSize bounds how many post rows one purge pass may remove, which
// bounds transaction size and lock duration.
const purgeBatchSize = 1000

// PurgeDeletedAccounts hard-deletes content belonging to accounts marked
// for deletion, one bounded pass per call. It returns the number of post
// rows removed so the scheduler can tell an idle pass from real work; a
// full batch means another pass is due. The final pass also clears the
// accounts' relationship rows and the account records themselves.
func (s *Service) PurgeDeletedAccounts(ctx context.Context) (int, error) {
	var accountIDs []uint
	err := s.DB.WithContext(ctx).Model(&models.Account{}).
		Where("pending_deletion = ?", true).
		Pluck("id", &accountIDs).Error
	if err != nil {
		return 0, errTransient("failed to list accounts pending deletion", err)
	}
	if len(accountIDs) == 0 {
		return 0, nil
	}

	var postIDs []uint
	err = s.DB.WithContext(ctx).Model(&models.Post{}).
		Where("author_id IN ?", accountIDs).
		Order("id").Limit(purgeBatchSize).
		Pluck("id", &postIDs).Error
	if err != nil {
		return 0, errTransient("failed to list posts for purge", err)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(postIDs) > 0 {
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Like{}).Error; err != nil {
				return err
			}
			var pollIDs []uint
			if err := tx.Model(&models.Poll{}).Where("post_id IN ?", postIDs).Pluck("id", &pollIDs).Error; err != nil {
				return err
			}
			if len(pollIDs) > 0 {
				if err := tx.Where("poll_id IN ?", pollIDs).Delete(&models.PollVote{}).Error; err != nil {
					return err
				}
				if err := tx.Where("poll_id IN ?", pollIDs).Delete(&models.PollChoice{}).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", pollIDs).Delete(&models.Poll{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Attachment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Announcement{}).Error; err != nil {
				return err
			}
			if err := tx.Where("subject_post_id IN ?", postIDs).Delete(&models.Notification{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", postIDs).Delete(&models.Post{}).Error; err != nil {
				return err
			}
		}

		// Relationship rows are cheap; clear them alongside the last
		// content batch.
		if len(postIDs) < purgeBatchSize {
			if err := tx.Where("blocker_id IN ? OR blocked_id IN ?", accountIDs, accountIDs).Delete(&models.Block{}).Error; err != nil {
				return err
			}
			if err := tx.Where("follower_id IN ? OR followee_id IN ?", accountIDs, accountIDs).Delete(&models.Follow{}).Error; err != nil {
				return err
			}
			if err := tx.Where("actor_id IN ? OR recipient_id IN ?", accountIDs, accountIDs).Delete(&models.Notification{}).Error; err != nil {
				return err
			}
			if err := tx.Where("voter_id IN ?", accountIDs).Delete(&models.PollVote{}).Error; err != nil {
				return err
			}
			// A like row leaving must take its counter increment with it.
			err := tx.Exec(
				"UPDATE posts SET liked_by = liked_by - (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id AND likes.user_id IN (?)) WHERE id IN (SELECT post_id FROM likes WHERE user_id IN (?))",
				accountIDs, accountIDs).Error
			if err != nil {
				return err
			}
			if err := tx.Where("user_id IN ?", accountIDs).Delete(&models.Like{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", accountIDs).Delete(&models.Account{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errTransient("purge pass failed", err)
	}
	return len(postIDs), nil
}
