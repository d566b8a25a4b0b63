package service

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/rentscope/market-planner/internal/events"
	"github.com/rentscope/market-planner/internal/store"
	"github.com/rentscope/market-planner/pkg/requestid"
	"go.uber.org/zap"
)

// CacheInvalidationListener evicts the cached analysis of a location whose data was updated.
// It runs on its own consumer so eviction never delays job completion.
type CacheInvalidationListener struct {
	cache  store.AnalysisCache
	reader events.Reader
	topic  string
	log    *zap.SugaredLogger
}

func NewCacheInvalidationListener(cache store.AnalysisCache, reader events.Reader, topic string) *CacheInvalidationListener {
	return &CacheInvalidationListener{
		cache:  cache,
		reader: reader,
		topic:  topic,
		log:    zap.S().Named("cache_listener"),
	}
}

func (l *CacheInvalidationListener) Run(ctx context.Context) error {
	return l.reader.Consume(ctx, l.topic, l.Handle)
}

// Handle never returns an error: a stale cache entry is only a performance problem.
func (l *CacheInvalidationListener) Handle(ctx context.Context, e cloudevents.Event) error {
	ctx = requestid.ToContext(ctx, e.ID())
	if e.Type() != events.DataUpdatedMessageKind {
		return nil
	}

	var n events.DataUpdatedNotification
	if err := e.DataAs(&n); err != nil {
		l.log.Warnw("dropping undecodable data updated notification", "error", err, "event_id", e.ID())
		return nil
	}

	if err := l.cache.Evict(ctx, n.LocationID); err != nil {
		l.log.Warnw("failed to evict cached analysis", "error", err, "location_id", n.LocationID)
		return nil
	}
	l.log.Debugw("evicted cached analysis", "location_id", n.LocationID, "properties_affected", n.PropertiesAffected)
	return nil
}
