package feed

import (
	"github.com/suryabasnet/murmur/internal/models"
	"gorm.io/gorm"
)

// Filter selects which sequence of posts a page comes from. Exactly one of
// the selector fields should be set; Home and Announcements are flags, the
// rest are references. BypassBlocks is reserved for trusted internal
// callers (moderation) and skips the visibility predicate.
type Filter struct {
	AuthorID      *uint
	CommentTo     *uint
	LikedBy       *uint
	Home          bool
	Announcements bool
	BypassBlocks  bool
}

// Cursor bounds a page on the monotonic post ID axis. AfterID selects
// strictly older rows (id < AfterID), BeforeID strictly newer (id >
// BeforeID). If both are set only AfterID is honored.
type Cursor struct {
	AfterID  uint
	BeforeID uint
	Limit    int
}

// Paginate returns one page of assembled posts. The query runs
// newest-first; the returned slice is reversed to oldest-first for
// append-at-bottom rendering. Every returned post is queued into the view
// cache.
func (s *Service) Paginate(viewer uint, f Filter, cur Cursor, fingerprint string) ([]*PostView, error) {
	limit := cur.Limit
	if limit <= 0 || limit > PageLimit {
		limit = PageLimit
	}

	q := s.DB.Model(&models.Post{})
	q = applyFilter(q, viewer, f)
	if !f.BypassBlocks {
		q = withoutBlocked(q, viewer)
	}

	if cur.AfterID > 0 {
		q = q.Where("posts.id < ?", cur.AfterID)
	} else if cur.BeforeID > 0 {
		q = q.Where("posts.id > ?", cur.BeforeID)
	}

	var posts []models.Post
	if err := q.Order("posts.id DESC").Limit(limit).Find(&posts).Error; err != nil {
		return nil, errTransient("failed to fetch page", err)
	}

	// Oldest-first within the page.
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}

	views, err := s.assemblePage(viewer, posts)
	if err != nil {
		return nil, err
	}

	viewed := make([]uint, 0, len(posts)+1)
	for _, p := range posts {
		viewed = append(viewed, p.ID)
	}
	// A thread page implies the parent is on screen too.
	if f.CommentTo != nil {
		viewed = append(viewed, *f.CommentTo)
	}
	s.recordViews(fingerprint, viewed...)

	return views, nil
}

// applyFilter translates a Filter into query predicates. Soft-deleted
// posts stay visible inside comment threads (tombstones keep the thread
// shape) but are excluded everywhere else.
func applyFilter(q *gorm.DB, viewer uint, f Filter) *gorm.DB {
	switch {
	case f.CommentTo != nil:
		return q.Where("posts.comment_to_id = ?", *f.CommentTo)
	case f.AuthorID != nil:
		return q.Where("posts.author_id = ? AND posts.deleted = ?", *f.AuthorID, false)
	case f.LikedBy != nil:
		return q.Where("posts.deleted = ?", false).
			Where("posts.id IN (SELECT post_id FROM likes WHERE user_id = ?)", *f.LikedBy)
	case f.Announcements:
		return q.Where("posts.deleted = ?", false).
			Where("posts.id IN (SELECT post_id FROM announcements)")
	case f.Home:
		return q.Where("posts.deleted = ?", false).
			Where("posts.comment_to_id IS NULL").
			Where("posts.author_id = ? OR posts.author_id IN (SELECT followee_id FROM follows WHERE follower_id = ?)",
				viewer, viewer)
	default:
		// Global feed: all top-level posts.
		return q.Where("posts.deleted = ?", false).Where("posts.comment_to_id IS NULL")
	}
}
