// Package metrics exposes the prometheus collectors of the server.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmate_messages_sent_total",
		Help: "Chat messages persisted, by kind.",
	}, []string{"kind"})

	ReadReceipts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmate_read_receipts_total",
		Help: "Mark-as-read writes, by result.",
	}, []string{"result"})

	TypingWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmate_typing_writes_total",
		Help: "Typing status writes, by operation and result.",
	}, []string{"op", "result"})

	PushPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmate_push_published_total",
		Help: "Push notifications published, by result.",
	}, []string{"result"})

	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tripmate_live_sessions",
		Help: "Open websocket sessions.",
	})

	Subscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tripmate_docstore_subscriptions",
		Help: "Live document store subscriptions held by sessions.",
	})
)

// Result maps an error to the "ok"/"error" label value
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the default registry through fiber
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
