package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	brokerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_broker_connected",
			Help: "Whether the broker session is currently connected (1) or not (0).",
		},
	)
	brokerReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_broker_reconnects_total",
			Help: "Total number of broker reconnection attempts.",
		},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_broker_frames_total",
			Help: "Total number of inbound broker frames by outcome.",
		},
		[]string{"topic", "outcome"},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_messages_sent_total",
			Help: "Total number of outbound sends by kind and result.",
		},
		[]string{"kind", "result"},
	)
	messagesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_messages_received_total",
			Help: "Total number of inbound messages applied to a timeline.",
		},
	)
	receiptsAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_read_receipts_applied_total",
			Help: "Total number of read receipt events applied.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		brokerConnected,
		brokerReconnectsTotal,
		framesTotal,
		messagesSentTotal,
		messagesReceivedTotal,
		receiptsAppliedTotal,
	)
}

func SetBrokerConnected(connected bool) {
	if connected {
		brokerConnected.Set(1)
		return
	}
	brokerConnected.Set(0)
}

func IncBrokerReconnect() {
	brokerReconnectsTotal.Inc()
}

func IncFrame(topic, outcome string) {
	framesTotal.WithLabelValues(topic, outcome).Inc()
}

func IncMessageSent(kind, result string) {
	messagesSentTotal.WithLabelValues(kind, result).Inc()
}

func IncMessageReceived() {
	messagesReceivedTotal.Inc()
}

func IncReceiptApplied() {
	receiptsAppliedTotal.Inc()
}
