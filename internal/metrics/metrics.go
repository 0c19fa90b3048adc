package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Joins counts attendance joins, labelled first vs rejoin.
	Joins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classmeet_attendance_joins_total",
		Help: "Attendance join events recorded.",
	}, []string{"rejoin"})

	// Leaves counts attendance leaves.
	Leaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classmeet_attendance_leaves_total",
		Help: "Attendance leave events recorded.",
	})

	// ValidationFailures counts enrollment validation rejections by kind.
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classmeet_validate_failures_total",
		Help: "Enrollment validation failures.",
	}, []string{"kind"})

	// LobbyResolutions counts lobby resolutions by terminal state.
	LobbyResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classmeet_lobby_resolutions_total",
		Help: "Lobby session resolutions by outcome.",
	}, []string{"state"})
)
