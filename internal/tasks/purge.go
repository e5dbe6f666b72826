package tasks

import (
	"context"
	"log"
	"time"

	"github.com/suryabasnet/murmur/internal/feed"
)

// AccountPurger sweeps content of accounts marked for deletion. Each run
// keeps taking bounded passes until a pass comes back empty, so a large
// account drains across many small transactions instead of one huge one.
type AccountPurger struct {
	Svc   *feed.Service
	Every time.Duration
}

func (p *AccountPurger) Name() string { return "account-purge" }

func (p *AccountPurger) Interval() time.Duration {
	if p.Every <= 0 {
		return time.Hour
	}
	return p.Every
}

func (p *AccountPurger) Run(ctx context.Context) error {
	total := 0
	for {
		n, err := p.Svc.PurgeDeletedAccounts(ctx)
		if err != nil {
			return err
		}
		total += n
		if n == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	if total > 0 {
		log.Printf("purged %d posts from deleted accounts", total)
	}
	return nil
}
