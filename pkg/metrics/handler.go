package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type PrometheusMetricsHandler struct {
	gatherer prometheus.Gatherer
}

// NewPrometheusMetricsHandler serves the default registry. A non nil reader adds the job status gauges to it.
func NewPrometheusMetricsHandler(reader StatsReader) *PrometheusMetricsHandler {
	if reader != nil {
		if err := prometheus.Register(newJobStatsCollector(reader)); err != nil {
			zap.S().Named("metrics").Warnw("job status collector not registered", "error", err)
		}
	}
	return &PrometheusMetricsHandler{gatherer: prometheus.DefaultGatherer}
}

func (p *PrometheusMetricsHandler) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
