package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the emergency core. Registered once via promauto
// on the default registry; /metrics is mounted by the server.
var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lifeline_websocket_connections",
		Help: "Currently registered websocket connections",
	})

	eventsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeline_events_received_total",
		Help: "Inbound events by name",
	}, []string{"event"})

	eventsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeline_events_rejected_total",
		Help: "Inbound events dropped by validation",
	}, []string{"event"})

	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeline_deliveries_total",
		Help: "Unicast delivery outcomes by event",
	}, []string{"event", "result"})

	persistenceFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeline_persistence_failures_total",
		Help: "Failed durable writes of emergency records",
	})
)

func ConnectionsSet(n float64) { connectionsGauge.Set(n) }

func EventReceived(event string) { eventsReceivedTotal.WithLabelValues(event).Inc() }

func EventRejected(event string) { eventsRejectedTotal.WithLabelValues(event).Inc() }

func DeliverySent(event string) { deliveriesTotal.WithLabelValues(event, "sent").Inc() }

// DeliveryMiss counts a drop for an unbound receiver. Not an error.
func DeliveryMiss(event string) { deliveriesTotal.WithLabelValues(event, "miss").Inc() }

func PersistenceFailure() { persistenceFailuresTotal.Inc() }
