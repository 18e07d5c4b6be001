package telegram

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var updatesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigil_updates_received_total",
	Help: "Number of Bot API updates received.",
})

var updatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigil_updates_skipped_total",
	Help: "Number of updates that carried nothing relevant.",
})

var pollErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigil_poll_errors_total",
	Help: "Number of failed getUpdates calls.",
})
