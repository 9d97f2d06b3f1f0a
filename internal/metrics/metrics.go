// Package metrics exposes Prometheus counters for the composed-recording
// control plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordingStarts counts Start operations by outcome (ok, partial, failed).
	RecordingStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "composed_recording_starts_total",
		Help: "Composed recording start operations by outcome.",
	}, []string{"outcome"})

	// RecordingStops counts Stop operations by outcome (ok, partial, rejected).
	RecordingStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "composed_recording_stops_total",
		Help: "Composed recording stop operations by outcome.",
	}, []string{"outcome"})

	// LegFailures counts individual external-call failures by leg
	// (render_create, archive_start, render_delete, archive_stop).
	LegFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "composed_recording_leg_failures_total",
		Help: "Failed external calls by leg.",
	}, []string{"leg"})

	// SessionCreates counts platform session creations issued by the credential cache.
	SessionCreates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "video_session_creates_total",
		Help: "Platform sessions created.",
	})
)
