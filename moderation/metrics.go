package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigil_events_processed",
	Help: "Number of inbound events processed, by event type",
}, []string{"type"})

var eventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigil_events_failed",
	Help: "Number of inbound events that failed processing, by event type",
}, []string{"type"})

var violationsFound = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigil_violations_found",
	Help: "Number of message violations detected, by violation kind",
}, []string{"kind"})

var warnNoticesSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigil_warn_notices_sent",
	Help: "Number of warning notices sent to violating users",
})

var bansIssued = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigil_bans_issued",
	Help: "Number of users banned after reaching the warning threshold",
})

var wordlistReloads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigil_wordlist_reloads",
	Help: "Number of keyword list reloads, by outcome",
}, []string{"outcome"})
