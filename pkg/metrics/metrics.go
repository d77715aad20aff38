package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what happens to the messages read from the channel.
type Metrics struct {
	Messages    prometheus.Counter
	Signals     prometheus.Counter
	Duplicates  prometheus.Counter
	Rejected    *prometheus.CounterVec
	FetchErrors *prometheus.CounterVec
	HandoffErrs prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aoreader",
			Name:      "messages_total",
			Help:      "Messages read from the signal channel.",
		}),
		Signals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aoreader",
			Name:      "signals_total",
			Help:      "Signals handed off for processing.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aoreader",
			Name:      "duplicate_signals_total",
			Help:      "Signals skipped because their fingerprint was already processed.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aoreader",
			Name:      "rejected_messages_total",
			Help:      "Messages that didn't contain a usable signal.",
		}, []string{"reason"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aoreader",
			Name:      "fetch_errors_total",
			Help:      "Failed channel reads.",
		}, []string{"kind"}),
		HandoffErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aoreader",
			Name:      "handoff_errors_total",
			Help:      "Signals a handler failed to process.",
		}),
	}
	reg.MustRegister(m.Messages, m.Signals, m.Duplicates, m.Rejected, m.FetchErrors, m.HandoffErrs)
	return m
}
