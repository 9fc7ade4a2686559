package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive is the gauge of open TCP connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parley_connections_active",
		Help: "Number of open client connections",
	})

	// SessionsAuthenticated is the gauge of sessions past LOGIN.
	SessionsAuthenticated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parley_sessions_authenticated",
		Help: "Number of authenticated sessions",
	})

	// MessagesTotal counts relayed chat messages by kind.
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_messages_total",
		Help: "Total chat messages relayed, by kind",
	}, []string{"kind"})

	// FramesDroppedTotal counts outbound frames dropped by reason.
	FramesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_frames_dropped_total",
		Help: "Total outbound frames dropped due to backpressure",
	}, []string{"reason"})

	// RateLimitedTotal counts chat frames rejected by the per-session window.
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_rate_limited_total",
		Help: "Total chat frames rejected by rate limiting",
	})

	// AuthFailuresTotal counts rejected LOGIN attempts by reason.
	AuthFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_auth_failures_total",
		Help: "Total rejected login attempts, by reason",
	}, []string{"reason"})

	// BroadcastsTotal counts hub fan-outs.
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_broadcasts_total",
		Help: "Total broadcast fan-outs",
	})
)
