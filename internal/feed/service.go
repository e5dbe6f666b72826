// Package feed implements the content-feed core: cursor pagination with a
// block-aware query filter, single-post assembly with parent-chain
// redaction, the poll vote ledger, notification de-duplication, and the
// soft-delete cascade. All storage access goes through GORM; view counting
// is handed off to a write-back cache and never blocks a request.
package feed

import (
	"errors"

	"github.com/suryabasnet/murmur/internal/events"
	"github.com/suryabasnet/murmur/internal/viewcache"
	"gorm.io/gorm"
)

// PageLimit is the hard ceiling on page sizes regardless of what the
// caller asks for.
const PageLimit = 30

// Service is the content-feed core. Views may be nil (view recording is
// then a no-op) and Events may be nil (no events published); both are
// fire-and-forget collaborators.
type Service struct {
	DB     *gorm.DB
	Views  viewcache.Cache
	Events *events.Publisher
}

func NewService(db *gorm.DB, views viewcache.Cache, ev *events.Publisher) *Service {
	return &Service{DB: db, Views: views, Events: ev}
}

// isDuplicate reports whether err is a unique-constraint violation. Relies
// on TranslateError being set on the gorm config.
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// recordViews queues view increments without ever failing the request.
func (s *Service) recordViews(fingerprint string, postIDs ...uint) {
	if s.Views == nil || len(postIDs) == 0 {
		return
	}
	s.Views.Record(postIDs, fingerprint)
}
