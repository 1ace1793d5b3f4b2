package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leno"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the metrics gathered by g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// BroadcastMetrics tracks the line stream and its subscribers.
type BroadcastMetrics struct {
	LinesRead         prometheus.Counter
	LinesUnparsed     prometheus.Counter
	LinesDelivered    prometheus.Counter
	SendFailures      prometheus.Counter
	SubscribersJoined prometheus.Counter
	SubscribersLeft   prometheus.Counter
	UpgradeFailures   prometheus.Counter
	UpgradesRejected  *prometheus.CounterVec
	ActiveSubscribers prometheus.GaugeFunc
}

// NewBroadcastMetrics creates and registers broadcast metrics on reg.
// active is sampled on every scrape for the current subscriber count.
func NewBroadcastMetrics(reg prometheus.Registerer, active func() int) *BroadcastMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      name,
			Help:      help,
		})
	}

	m := &BroadcastMetrics{
		LinesRead:         counter("lines_read_total", "Total lines read from the input stream."),
		LinesUnparsed:     counter("lines_unparsed_total", "Lines that did not match the configured line format and were passed through."),
		LinesDelivered:    counter("lines_delivered_total", "Total line deliveries enqueued across all subscribers."),
		SendFailures:      counter("send_failures_total", "Subscribers dropped because a send failed."),
		SubscribersJoined: counter("subscribers_joined_total", "Subscribers registered after a successful upgrade."),
		SubscribersLeft:   counter("subscribers_left_total", "Subscribers removed for any reason."),
		UpgradeFailures:   counter("upgrade_failures_total", "WebSocket upgrade attempts that failed."),
		UpgradesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "upgrades_rejected_total",
			Help:      "Upgrade requests refused before the handshake, by reason.",
		}, []string{"reason"}),
		ActiveSubscribers: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "active_subscribers",
			Help:      "Number of currently open subscribers.",
		}, func() float64 { return float64(active()) }),
	}

	reg.MustRegister(
		m.LinesRead,
		m.LinesUnparsed,
		m.LinesDelivered,
		m.SendFailures,
		m.SubscribersJoined,
		m.SubscribersLeft,
		m.UpgradeFailures,
		m.UpgradesRejected,
		m.ActiveSubscribers,
	)
	return m
}

// LineBroadcast records the outcome of one broadcast. It satisfies
// broadcast.Observer.
func (m *BroadcastMetrics) LineBroadcast(delivered, failed int) {
	m.LinesDelivered.Add(float64(delivered))
	m.SendFailures.Add(float64(failed))
}

// SubscriberJoined, SubscriberLeft, UpgradeFailed and UpgradeRejected satisfy
// ws.Observer.
func (m *BroadcastMetrics) SubscriberJoined() { m.SubscribersJoined.Inc() }
func (m *BroadcastMetrics) SubscriberLeft()   { m.SubscribersLeft.Inc() }
func (m *BroadcastMetrics) UpgradeFailed()    { m.UpgradeFailures.Inc() }

func (m *BroadcastMetrics) UpgradeRejected(reason string) {
	m.UpgradesRejected.WithLabelValues(reason).Inc()
}
