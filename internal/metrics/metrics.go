package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	OrdersGeneratedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "orders_generated_total", Help: "Orders generated by side"}, []string{"side"})
	OrdersSentTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_sent_total", Help: "Orders delivered to the engine"})
	SendFailuresTotal    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "order_send_failures_total", Help: "Failed order transmissions by error kind"}, []string{"kind"})
	SendLatency          = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "order_send_latency_seconds", Help: "Connect, write and optional ack read", Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14)})
	FramesRenderedTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "frames_rendered_total", Help: "Depth frames drawn"})
	DepthLevels          = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "depth_price_levels", Help: "Price levels in the aggregate view by side"}, []string{"side"})
	EngineOrdersTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_orders_total", Help: "Orders placed on the reference engine"})
	EngineTradesTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_trades_total", Help: "Trades matched by the reference engine"})
	EngineRestingOrders  = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "engine_resting_orders", Help: "Orders resting on the reference engine book by side"}, []string{"side"})
	EngineRestingQty     = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "engine_resting_quantity", Help: "Quantity resting on the reference engine book by side"}, []string{"side"})
)

// Init registers every collector into a fresh registry.
func Init() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		OrdersGeneratedTotal, OrdersSentTotal, SendFailuresTotal, SendLatency,
		FramesRenderedTotal, DepthLevels, EngineOrdersTotal, EngineTradesTotal,
		EngineRestingOrders, EngineRestingQty,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	reg.MustRegister(toRegister...)
	log.Debug().Msg("prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until the server fails. An empty addr is a no-op.
func Serve(addr string, reg *prometheus.Registry) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	log.Info().Str("addr", addr).Msg("serving metrics")
	return http.ListenAndServe(addr, mux)
}
