package live

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addis",
		Subsystem: "live",
		Name:      "events_total",
		Help:      "Inbound live frames by classification.",
	}, []string{"kind"})

	connectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addis",
		Subsystem: "live",
		Name:      "connects_total",
		Help:      "Connection attempts by result.",
	}, []string{"result"})
)

const (
	kindNotification = "notification"
	kindMessage      = "message"
	kindMalformed    = "malformed"
)

func init() {
	prometheus.MustRegister(eventsTotal, connectsTotal)
}
