package services

import (
	"context"
	"log"
	"sync"
	"time"

	"eventease/data"
	"eventease/lifecycle"
	"eventease/models"
	"eventease/monitoring"
	"eventease/utils"
)

// ExpirySweeper notices invitations whose window has passed. Expiry is
// observational: the invitation keeps its pending status and the state
// machine derives EXPIRED_INVITATION from the timestamps. Applying the
// expiry removes the invitation from the store's pending listing, so each
// one is notified exactly once; the noticed map only covers invitations
// the store keeps listing without an applicable expiry.
type ExpirySweeper struct {
	Store    data.Store
	Machine  *lifecycle.Machine
	Notifier *Notifier
	Monitor  *monitoring.Monitor
	Now      func() time.Time
	Every    time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	noticed map[string]bool
}

func NewExpirySweeper(store data.Store, machine *lifecycle.Machine, notifier *Notifier, monitor *monitoring.Monitor, every time.Duration) *ExpirySweeper {
	s := &ExpirySweeper{
		Store:    store,
		Machine:  machine,
		Notifier: notifier,
		Monitor:  monitor,
		Now:      time.Now,
		Every:    every,
		stopChan: make(chan struct{}),
		noticed:  make(map[string]bool),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *ExpirySweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.Every)
	defer ticker.Stop()

	log.Println("Expiry sweeper started")

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(context.Background())
		case <-s.stopChan:
			log.Println("Expiry sweeper stopping")
			return
		}
	}
}

// SweepOnce processes every pending invitation whose window has passed.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) {
	now := s.Now()

	expired, err := s.Store.ListPendingExpired(ctx, now)
	if err != nil {
		log.Printf("Error listing expired invitations: %v", err)
		return
	}

	swept := 0
	for _, inv := range expired {
		if s.alreadyNoticed(inv.ID) {
			continue
		}

		f, err := s.Store.Facts(ctx, inv.EventID, inv.UID)
		if err != nil {
			continue
		}
		if f.Invitation == nil || f.Invitation.ID != inv.ID {
			// The invitation resolved or was superseded between the list
			// and the read.
			s.markNoticed(inv.ID)
			continue
		}

		_, cmds, err := s.Machine.Expire(f, now)
		if err != nil {
			// Not in an expirable state (e.g. the user already left).
			s.markNoticed(inv.ID)
			continue
		}
		if err := s.Store.Apply(ctx, lifecycle.ActionExpire, f, cmds); err != nil {
			if data.IsConflict(err) {
				// A racing transition won; the next sweep re-reads.
				continue
			}
			log.Printf("Error applying expiry for invitation %s: %v", inv.ID, err)
			continue
		}

		// The store dropped the invitation from the pending listing, so
		// no in-memory mark is needed for it anymore.
		s.forgetNoticed(inv.ID)
		s.logExpired(ctx, inv)
		swept++
	}

	if swept > 0 {
		log.Printf("Swept %d expired invitations", swept)
	}
}

func (s *ExpirySweeper) logExpired(ctx context.Context, inv *models.Invitation) {
	id, err := utils.GenerateCode(8)
	if err != nil {
		return
	}
	entry := models.NotificationLogEntry{
		ID:      id,
		UID:     inv.UID,
		EventID: inv.EventID,
		Kind:    "expired",
		Message: "Your invitation has expired. You are still on the waitlist.",
		SentAt:  s.Now(),
	}
	if err := s.Store.AppendNotification(ctx, entry); err != nil {
		log.Printf("Error appending expiry notification for user %s: %v", inv.UID, err)
	}
	if s.Monitor != nil {
		s.Monitor.TrackNotification("expired")
	}
	s.Notifier.NotifyExpired(inv)
}

func (s *ExpirySweeper) alreadyNoticed(invitationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noticed[invitationID]
}

func (s *ExpirySweeper) markNoticed(invitationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noticed[invitationID] = true
}

func (s *ExpirySweeper) forgetNoticed(invitationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.noticed, invitationID)
}

// Shutdown stops the sweep loop and waits for it to finish.
func (s *ExpirySweeper) Shutdown() {
	close(s.stopChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Println("Timeout waiting for expiry sweeper to stop")
	}
}
