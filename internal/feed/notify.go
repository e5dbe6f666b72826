package feed

import (
	"errors"

	"github.com/suryabasnet/murmur/internal/models"
	"gorm.io/gorm"
)

// Notify creates at most one notification per (actor, recipient, type,
// subject) tuple and bumps the recipient's unread counter in the same
// transaction. It reports whether a row was created; repeated identical
// actions (like toggled off and on, duplicate delivery) skip cleanly.
//
// Recipient resolution by type:
//   - liked:    the subject post's author
//   - replied:  the author of the subject post's parent (the one replied to)
//   - followed: the explicit recipient (no subject)
//
// Self-notification and blocked actor/recipient pairs are suppressed.
func (s *Service) Notify(actor uint, typ models.NotificationType, subjectPostID *uint, explicitRecipient *uint) (bool, error) {
	recipient, err := s.resolveRecipient(typ, subjectPostID, explicitRecipient)
	if err != nil {
		return false, err
	}
	if recipient == 0 || recipient == actor {
		return false, nil
	}
	blocked, err := s.IsBlocked(actor, recipient)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	created := false
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		existing := tx.Model(&models.Notification{}).
			Where("actor_id = ? AND recipient_id = ? AND type = ?", actor, recipient, typ)
		if subjectPostID != nil {
			existing = existing.Where("subject_post_id = ?", *subjectPostID)
		} else {
			existing = existing.Where("subject_post_id IS NULL")
		}
		var n int64
		if err := existing.Count(&n).Error; err != nil {
			return errTransient("notification lookup failed", err)
		}
		if n > 0 {
			return nil
		}

		row := models.Notification{
			ActorID:       actor,
			RecipientID:   recipient,
			Type:          typ,
			SubjectPostID: subjectPostID,
		}
		if err := tx.Create(&row).Error; err != nil {
			if isDuplicate(err) {
				// Lost the race to an identical notification; same outcome
				// as the pre-check catching it.
				return nil
			}
			return errTransient("failed to create notification", err)
		}
		err := tx.Model(&models.Account{}).Where("id = ?", recipient).
			Update("notification_count", gorm.Expr("notification_count + 1")).Error
		if err != nil {
			return errTransient("failed to bump unread counter", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created && s.Events != nil {
		s.Events.NotificationCreated(recipient, string(typ))
	}
	return created, nil
}

func (s *Service) resolveRecipient(typ models.NotificationType, subjectPostID, explicitRecipient *uint) (uint, error) {
	switch typ {
	case models.NotificationLiked:
		if subjectPostID == nil {
			return 0, errConflict("liked notification needs a subject post")
		}
		post, err := s.loadPost(*subjectPostID)
		if err != nil {
			return 0, err
		}
		return post.AuthorID, nil
	case models.NotificationReplied:
		if subjectPostID == nil {
			return 0, errConflict("replied notification needs a subject post")
		}
		reply, err := s.loadPost(*subjectPostID)
		if err != nil {
			return 0, err
		}
		if reply.CommentToID == nil {
			return 0, nil // not a reply, nobody to notify
		}
		parent, err := s.loadPost(*reply.CommentToID)
		if err != nil {
			if KindOf(err) == KindNotFound {
				return 0, nil
			}
			return 0, err
		}
		return parent.AuthorID, nil
	case models.NotificationFollowed:
		if explicitRecipient == nil {
			return 0, errConflict("followed notification needs a recipient")
		}
		return *explicitRecipient, nil
	default:
		return 0, errConflict("unknown notification type %q", typ)
	}
}

// Notifications returns the recipient's notifications, newest first,
// bounded by the page ceiling.
func (s *Service) Notifications(recipient uint, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > PageLimit {
		limit = PageLimit
	}
	var rows []models.Notification
	err := s.DB.Where("recipient_id = ?", recipient).
		Order("id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, errTransient("failed to load notifications", err)
	}
	return rows, nil
}

// UnreadCount returns the recipient's running unread counter.
func (s *Service) UnreadCount(recipient uint) (int, error) {
	var account models.Account
	if err := s.DB.First(&account, recipient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errNotFound("account %d not found", recipient)
		}
		return 0, errTransient("failed to load account", err)
	}
	return account.NotificationCount, nil
}

// Dismiss zeroes the unread counter. Notification rows are kept: read
// state is a counter, not a per-notification flag.
func (s *Service) Dismiss(recipient uint) error {
	err := s.DB.Model(&models.Account{}).Where("id = ?", recipient).
		Update("notification_count", 0).Error
	if err != nil {
		return errTransient("failed to dismiss notifications", err)
	}
	return nil
}
