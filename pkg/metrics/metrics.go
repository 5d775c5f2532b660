// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DuplicatesDetected counts detector matches by method
	DuplicatesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "detection",
			Name:      "duplicates_total",
			Help:      "Total number of duplicate matches by method",
		},
		[]string{"method"},
	)

	// DetectionErrors counts lookups that failed and were treated as no match
	DetectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "detection",
			Name:      "errors_total",
			Help:      "Total number of failed duplicate lookups by step",
		},
		[]string{"step"},
	)

	// DetectionConfidence tracks the confidence of positive matches
	DetectionConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "detection",
			Name:      "confidence",
			Help:      "Confidence of positive duplicate matches",
			Buckets:   []float64{50, 60, 70, 80, 90, 95, 100},
		},
	)

	// ReviewDecisions counts committed moderator decisions
	ReviewDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "review",
			Name:      "decisions_total",
			Help:      "Total number of review decisions by outcome",
		},
		[]string{"outcome"},
	)

	// ReviewFailures counts approve or reject calls that failed
	ReviewFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "review",
			Name:      "failures_total",
			Help:      "Total number of failed review decisions by action",
		},
		[]string{"action"},
	)

	// CatalogBumpsSkipped counts merges where the catalog timestamp was left alone
	CatalogBumpsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "review",
			Name:      "bumps_skipped_total",
			Help:      "Total number of merges that skipped the catalog updated_at bump",
		},
	)

	// IngestedCandidates counts submitted scraped courses by outcome
	IngestedCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "ingest",
			Name:      "candidates_total",
			Help:      "Total number of scraped courses ingested by outcome",
		},
		[]string{"outcome"},
	)

	// EventsPublished counts lifecycle events written to Kafka
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of lifecycle events published by type and status",
		},
		[]string{"event_type", "status"},
	)

	// MessagesConsumed counts scraped-course messages by handling status
	MessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of consumed messages by status",
		},
		[]string{"status"},
	)
)
