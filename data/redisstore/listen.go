package redisstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"eventease/data"
	"eventease/models"
)

// ListenActive delivers the uid's active-invitation snapshot immediately,
// then re-reads on a fixed interval and delivers again whenever the
// snapshot changed. Snapshots are delivered in read order from a single
// goroutine, so a listener never observes an older state after a newer one.
func (s *Store) ListenActive(ctx context.Context, uid string, l data.InvitationListener) (data.Subscription, error) {
	interval := s.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	snapshot, err := s.ListActive(ctx, uid, s.Now())
	if err != nil {
		return nil, err
	}

	w := &watcher{stop: make(chan struct{})}
	l(snapshot)
	last := fingerprint(snapshot)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				current, err := s.ListActive(ctx, uid, s.Now())
				if err != nil {
					continue
				}
				fp := fingerprint(current)
				if fp == last {
					continue
				}
				last = fp
				l(current)
			}
		}
	}()

	return w, nil
}

type watcher struct {
	stop chan struct{}
	once sync.Once
}

func (w *watcher) Remove() {
	w.once.Do(func() { close(w.stop) })
}

func fingerprint(active []*models.Invitation) string {
	raw, err := json.Marshal(active)
	if err != nil {
		return ""
	}
	return string(raw)
}
