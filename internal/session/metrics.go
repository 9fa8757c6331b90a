package session

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK    = "ok"
	resultError = "error"
)

var resyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "addis",
	Subsystem: "session",
	Name:      "resyncs_total",
	Help:      "Notification resyncs run by the session, by result.",
}, []string{"result"})

func init() {
	prometheus.MustRegister(resyncs)
}
