package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rentscope/market-planner/internal/service"
	"github.com/rentscope/market-planner/internal/store/model"
	"github.com/rentscope/market-planner/pkg/log"
	"github.com/rentscope/market-planner/pkg/metrics"
	plannermiddleware "github.com/rentscope/market-planner/pkg/middleware"
	"go.uber.org/zap"
)

const gracefulShutdownTimeout = 5 * time.Second

// BatchStatusReader exposes the state of the batch scheduler.
type BatchStatusReader interface {
	Status() service.BatchStatus
}

// AnalysisReader returns the market analysis of a location.
type AnalysisReader interface {
	Analyze(ctx context.Context, locationID uuid.UUID) (*model.MarketAnalysis, error)
}

// MetricServer serves prometheus metrics, a liveness check, the batch status and location analyses.
type MetricServer struct {
	bindAddress string
	httpServer  *http.Server
	listener    net.Listener
}

func NewMetricServer(bindAddress string, listener net.Listener, stats metrics.StatsReader, batch BatchStatusReader, analyses AnalysisReader, logLevel string) *MetricServer {
	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("metrics_server")
	if err := metricMiddleware.Register(prometheus.DefaultRegisterer); err != nil {
		zap.S().Named("metrics_server").Warnw("http metrics not registered", "error", err)
	}

	router.Use(
		middleware.RequestID,
		plannermiddleware.RequestID,
		log.ConditionalLogger(logLevel, zap.L(), "metrics_server"),
		middleware.Recoverer,
		metricMiddleware.Handler,
	)

	prometheusMetricHandler := metrics.NewPrometheusMetricsHandler(stats)
	router.Handle("/metrics", prometheusMetricHandler.Handler())
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if batch != nil {
		router.Get("/batch/status", batchStatusHandler(batch))
	}
	if analyses != nil {
		router.Get("/locations/{id}/analysis", analysisHandler(analyses))
	}

	return &MetricServer{
		bindAddress: bindAddress,
		listener:    listener,
		httpServer: &http.Server{
			Addr:              bindAddress,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (m *MetricServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		m.httpServer.SetKeepAlivesEnabled(false)
		_ = m.httpServer.Shutdown(ctxTimeout)
		zap.S().Named("metrics_server").Info("metrics server terminated")
	}()

	zap.S().Named("metrics_server").Infof("serving metrics: %s", m.bindAddress)
	if err := m.httpServer.Serve(m.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type batchStatusResponse struct {
	State               service.BatchState `json:"state"`
	Strategy            string             `json:"strategy"`
	Total               int                `json:"total"`
	Completed           int                `json:"completed"`
	Failed              int                `json:"failed"`
	StartedAt           *time.Time         `json:"started_at,omitempty"`
	FinishedAt          *time.Time         `json:"finished_at,omitempty"`
	EstimatedCompletion *time.Time         `json:"estimated_completion,omitempty"`
	Error               string             `json:"error,omitempty"`
}

func (b batchStatusResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type analysisResponse struct {
	*model.MarketAnalysis
}

func (a analysisResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type errorResponse struct {
	HTTPStatusCode int    `json:"-"`
	Message        string `json:"message"`
}

func (e errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func batchStatusHandler(batch BatchStatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := batch.Status()
		respond(w, r, batchStatusResponse{
			State:               s.State,
			Strategy:            string(s.Strategy),
			Total:               s.Total,
			Completed:           s.Completed,
			Failed:              s.Failed,
			StartedAt:           s.StartedAt,
			FinishedAt:          s.FinishedAt,
			EstimatedCompletion: s.EstimatedCompletion,
			Error:               s.Error,
		})
	}
}

func analysisHandler(analyses AnalysisReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			respond(w, r, errorResponse{HTTPStatusCode: http.StatusBadRequest, Message: "invalid location id"})
			return
		}

		analysis, err := analyses.Analyze(r.Context(), locationID)
		if err != nil {
			respond(w, r, errorResponse{HTTPStatusCode: service.StatusCode(err), Message: err.Error()})
			return
		}
		respond(w, r, analysisResponse{analysis})
	}
}

func respond(w http.ResponseWriter, r *http.Request, v render.Renderer) {
	if err := render.Render(w, r, v); err != nil {
		zap.S().Named("metrics_server").Warnw("failed to write response", "error", err, "path", r.URL.Path)
	}
}
