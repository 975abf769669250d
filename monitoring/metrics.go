package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	waitlistLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waitlist_length_total",
			Help: "Current waitlist length per event",
		},
		[]string{"event_id"},
	)

	pendingInvitations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_invitations_total",
			Help: "Current number of pending invitations across all events",
		},
	)

	lifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_transitions_total",
			Help: "Total registration lifecycle transitions",
		},
		[]string{"action", "event_id", "status"},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total notifications published per kind",
		},
		[]string{"kind"},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.collectRegistrationMetrics(context.Background())
	}
}

func (m *Monitor) collectRegistrationMetrics(ctx context.Context) {
	eventIDs, _ := m.redis.SMembers(ctx, "events:all").Result()
	for _, eventID := range eventIDs {
		length, _ := m.redis.LLen(ctx, fmt.Sprintf("waitlist:%s", eventID)).Result()
		waitlistLength.WithLabelValues(eventID).Set(float64(length))
	}

	pending, _ := m.redis.SCard(ctx, "invites:pending").Result()
	pendingInvitations.Set(float64(pending))
}

// TrackTransition records a lifecycle transition outcome.
func (m *Monitor) TrackTransition(action, eventID, status string) {
	lifecycleTransitions.WithLabelValues(action, eventID, status).Inc()
}

// TrackNotification records a published notification.
func (m *Monitor) TrackNotification(kind string) {
	notificationsSent.WithLabelValues(kind).Inc()
}
