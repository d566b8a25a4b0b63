package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rentscope/market-planner/internal/store/model"
	"go.uber.org/zap"
)

// StatsReader reads the job counts exposed at scrape time.
type StatsReader interface {
	Statistics(ctx context.Context) (model.JobStats, error)
}

type jobStatsCollector struct {
	reader      StatsReader
	jobsByState *prometheus.Desc
}

func newJobStatsCollector(r StatsReader) prometheus.Collector {
	return &jobStatsCollector{
		reader: r,
		jobsByState: prometheus.NewDesc(
			fmt.Sprintf("%s_jobs", marketPlanner),
			"Number of jobs in each status.",
			[]string{statusLabel},
			prometheus.Labels{},
		),
	}
}

func (c *jobStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobsByState
}

// Collect implements Collector.
func (c *jobStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.reader.Statistics(context.Background())
	if err != nil {
		zap.S().Named("job_collector").Errorf("failed to collect job statistics: %s", err)
		return
	}
	for _, status := range model.JobStatuses() {
		ch <- prometheus.MustNewConstMetric(c.jobsByState, prometheus.GaugeValue, float64(stats.ByStatus[status]), string(status))
	}
}
