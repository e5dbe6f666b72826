package feed

import (
	"github.com/suryabasnet/murmur/internal/models"
	"gorm.io/gorm"
)

// IsBlocked reports whether visibility between viewer and author is denied:
// either the viewer blocked the author or the author blocked the viewer.
// Viewer 0 means anonymous and is never blocked.
func (s *Service) IsBlocked(viewer, author uint) (bool, error) {
	if viewer == 0 || viewer == author {
		return false, nil
	}
	var n int64
	err := s.DB.Model(&models.Block{}).
		Where("status = ?", models.BlockStatusBlocked).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)",
			viewer, author, author, viewer).
		Count(&n).Error
	if err != nil {
		return false, errTransient("block lookup failed", err)
	}
	return n > 0, nil
}

// withoutBlocked narrows a posts query to authors visible to the viewer.
// Applied as part of the query predicate so excluded rows never count
// against the page limit.
func withoutBlocked(q *gorm.DB, viewer uint) *gorm.DB {
	if viewer == 0 {
		return q
	}
	return q.Where(
		"NOT EXISTS (SELECT 1 FROM blocks b WHERE b.status = ? AND ((b.blocker_id = posts.author_id AND b.blocked_id = ?) OR (b.blocker_id = ? AND b.blocked_id = posts.author_id)))",
		models.BlockStatusBlocked, viewer, viewer)
}

// BlockUser creates a blocker -> blocked edge. Re-blocking is a no-op
// surfaced as Conflict.
func (s *Service) BlockUser(blocker, blocked uint) error {
	if blocker == blocked {
		return errForbidden("cannot block yourself")
	}
	edge := models.Block{BlockerID: blocker, BlockedID: blocked, Status: models.BlockStatusBlocked}
	if err := s.DB.Create(&edge).Error; err != nil {
		if isDuplicate(err) {
			return errConflict("already blocked")
		}
		return errTransient("failed to create block", err)
	}
	return nil
}

// UnblockUser removes the edge if present.
func (s *Service) UnblockUser(blocker, blocked uint) error {
	res := s.DB.Where("blocker_id = ? AND blocked_id = ?", blocker, blocked).Delete(&models.Block{})
	if res.Error != nil {
		return errTransient("failed to remove block", res.Error)
	}
	if res.RowsAffected == 0 {
		return errNotFound("block not found")
	}
	return nil
}
