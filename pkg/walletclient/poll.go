package walletclient

import (
	"context"
	"time"
)

// DefaultPollInterval between dashboard refreshes
const DefaultPollInterval = 30 * time.Second

// Poll fetches the dashboard right away and then every interval until ctx is done.
// Each result, or the error of a failed refresh, is handed to fn.
func (s *Service) Poll(ctx context.Context, sess *Session, interval time.Duration, fn func(*Dashboard, error)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	refresh := func() {
		d, err := s.Dashboard(ctx, sess)
		if ctx.Err() != nil {
			return
		}
		fn(d, err)
	}

	refresh()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			refresh()
		}
	}
}
