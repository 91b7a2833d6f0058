package conversation

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for the AI task counters.
const (
	outcomeOK        = "ok"
	outcomeDenied    = "denied"
	outcomeTransient = "transient"
	outcomePermanent = "permanent"
	outcomeStale     = "stale"
)

var (
	// convEvents counts processed events by the state they arrived in and
	// their type. Cardinality is bounded: 11 states x 4 event types.
	convEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_events_total",
			Help: "Inbound conversation events by state and event type.",
		},
		[]string{"state", "type"},
	)

	// recognitionRuns counts recognition batch outcomes.
	recognitionRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recognition_batches_total",
			Help: "Recognition batch outcomes.",
		},
		[]string{"outcome"},
	)

	// enhancementRuns counts background enhancement outcomes.
	enhancementRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhancement_tasks_total",
			Help: "Background enhancement task outcomes.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(convEvents, recognitionRuns, enhancementRuns)
}
