// Package metrics holds the Prometheus collectors of the inventory pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is private so tests and multiple apps in one process never collide on the default one.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	ProductSyncs = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_product_syncs_total",
		Help: "Product syncs by result (updated, unchanged, failed).",
	}, []string{"result"})

	SyncDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_sync_all_duration_seconds",
		Help:    "Duration of full catalog syncs.",
		Buckets: prometheus.DefBuckets,
	})

	RestockEvents = factory.NewCounter(prometheus.CounterOpts{
		Name: "inventory_restock_events_total",
		Help: "Variants observed going from unavailable to available.",
	})

	RestockEmails = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "restock_notifications_total",
		Help: "Restock emails by result (sent, failed).",
	}, []string{"result"})

	CheckoutRejections = factory.NewCounter(prometheus.CounterOpts{
		Name: "checkout_unavailable_lines_total",
		Help: "Cart lines rejected at checkout because the variant was unavailable.",
	})

	RateFetches = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_rate_fetches_total",
		Help: "Exchange rate API calls by result (ok, failed).",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
