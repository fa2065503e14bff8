package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Счетчики движка; экспортируются через /metrics
var (
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_events_total",
		Help: "Inbound events by type",
	}, []string{"type"})

	RoomsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_rooms_created_total",
		Help: "Rooms created by mode",
	}, []string{"mode"})

	GamesWon = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_games_won_total",
		Help: "Won games by mode",
	}, []string{"mode"})

	OpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sweeper_open_connections",
		Help: "Currently open websocket connections",
	})
)
