package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/oceanobs/streamwatch/internal/conf"
	"github.com/oceanobs/streamwatch/internal/datastore/entities"
	"github.com/oceanobs/streamwatch/internal/datastore/repository"
	"github.com/oceanobs/streamwatch/internal/ingest"
	"github.com/oceanobs/streamwatch/internal/logger"
	"github.com/oceanobs/streamwatch/internal/notifier"
	"github.com/oceanobs/streamwatch/internal/observability/metrics"
)

const (
	// identityCacheTTL bounds staleness of the resolver cache. The
	// unique constraints in storage remain the source of truth; the
	// cache only skips redundant lookups within recent cycles.
	identityCacheTTL     = 10 * time.Minute
	identityCacheCleanup = 30 * time.Minute
)

// Engine runs the ingest and evaluation cycles: it turns raw counter
// readings into counter buckets, classifies every deployed stream, and
// records status transitions together with their outbox notifications.
type Engine struct {
	streams repository.StreamRepository
	counts  repository.CountRepository
	status  repository.StatusRepository
	windows *WindowEngine

	classifier  *Classifier
	rollupOrder []Status

	identityCache *gocache.Cache
	metrics       *metrics.Collectors
	log           logger.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine wires the evaluation engine from its repositories and the
// monitor settings.
func NewEngine(
	streams repository.StreamRepository,
	counts repository.CountRepository,
	status repository.StatusRepository,
	settings *conf.MonitorSettings,
	m *metrics.Collectors,
	log logger.Logger,
) *Engine {
	order := make([]Status, 0, len(settings.RollupOrder))
	for _, s := range settings.RollupOrder {
		order = append(order, Status(s))
	}
	return &Engine{
		streams: streams,
		counts:  counts,
		status:  status,
		// The evaluation cycle aggregates only the two decision
		// windows; the configured window set serves the query layer.
		windows:       NewWindowEngine(counts, nil),
		classifier:    NewClassifier(settings.Deviation, settings.DeadMultiplier),
		rollupOrder:   order,
		identityCache: gocache.New(identityCacheTTL, identityCacheCleanup),
		metrics:       m,
		log:           log,
		now:           time.Now,
	}
}

// resolve returns the deployed stream for a reading's natural key,
// consulting the process-local cache first.
func (e *Engine) resolve(ctx context.Context, r *ingest.Reading) (*entities.DeployedStream, error) {
	key := r.RefDes + "|" + r.Stream + "|" + r.Method
	if cached, ok := e.identityCache.Get(key); ok {
		return cached.(*entities.DeployedStream), nil
	}
	stream, err := e.streams.ResolveStream(ctx, r.RefDes, r.Stream, r.Method)
	if err != nil {
		return nil, err
	}
	e.identityCache.SetDefault(key, stream)
	return stream, nil
}

// Ingest records one batch of counter readings. Malformed readings are
// skipped with a warning; storage failures propagate and abort the
// batch (the next cycle retries).
func (e *Engine) Ingest(ctx context.Context, readings []ingest.Reading) error {
	now := e.now()
	added := 0
	for i := range readings {
		r := &readings[i]
		if err := r.Validate(); err != nil {
			e.metrics.ReadingsSkipped.Inc()
			e.log.Warn("skipping malformed reading",
				logger.String("refdes", r.RefDes),
				logger.String("stream", r.Stream),
				logger.Error(err))
			continue
		}
		wrote, err := e.ingestOne(ctx, r, now)
		if err != nil {
			return err
		}
		if wrote {
			added++
		}
	}
	if added > 0 {
		e.log.Debug("ingest cycle complete",
			logger.Int("readings", len(readings)), logger.Int("added", added))
	}
	return nil
}

// ingestOne writes at most one counter bucket for a reading. Duplicate
// counts and out-of-order timestamps are no-ops; a counter that moved
// backwards resets the baseline without emitting a negative delta.
func (e *Engine) ingestOne(ctx context.Context, r *ingest.Reading, now time.Time) (bool, error) {
	stream, err := e.resolve(ctx, r)
	if err != nil {
		return false, err
	}

	if stream.LastSeen == nil {
		// First observation establishes the baseline; there is no
		// elapsed interval to rate yet.
		if err := e.updateObservation(ctx, stream, r.Count, r.LastSeen, now); err != nil {
			return false, err
		}
		return false, nil
	}

	last := *stream.LastSeen
	if !r.LastSeen.After(last) {
		if r.LastSeen.Before(last) {
			e.metrics.ReadingsSkipped.Inc()
			e.log.Warn("dropping out-of-order reading",
				logger.String("refdes", r.RefDes),
				logger.String("stream", r.Stream),
				logger.Time("reading", r.LastSeen),
				logger.Time("last_seen", last))
		}
		return false, nil
	}
	if r.Count == stream.LastParticleCount {
		return false, nil
	}
	if r.Count < stream.LastParticleCount {
		e.log.Warn("counter moved backwards, resetting baseline",
			logger.String("refdes", r.RefDes),
			logger.String("stream", r.Stream),
			logger.Uint64("count", r.Count),
			logger.Uint64("last_count", stream.LastParticleCount))
		if err := e.updateObservation(ctx, stream, r.Count, r.LastSeen, now); err != nil {
			return false, err
		}
		return false, nil
	}

	bucket := &entities.StreamCount{
		DeployedStreamID: stream.ID,
		CollectedTime:    r.LastSeen,
		ParticleCount:    int64(r.Count - stream.LastParticleCount),
		SecondsElapsed:   r.LastSeen.Sub(last).Seconds(),
	}
	if err := e.counts.AddStreamCount(ctx, bucket); err != nil {
		return false, err
	}
	if err := e.updateObservation(ctx, stream, r.Count, r.LastSeen, now); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) updateObservation(ctx context.Context, stream *entities.DeployedStream, count uint64, lastSeen, collected time.Time) error {
	if err := e.streams.UpdateObservation(ctx, stream.ID, count, lastSeen, collected); err != nil {
		return err
	}
	// Keep the cached identity current so the next reading in this
	// batch sees the new baseline.
	stream.LastParticleCount = count
	stream.LastSeen = &lastSeen
	stream.CollectedTime = &collected
	return nil
}

// IngestPortStats records port-agent byte counter intervals against
// their reference designators. Each stat is already a delta over its
// interval, so it maps straight onto a counter bucket. Port counters
// feed the rate charts and the compactor; classification reads only
// particle stream counters.
func (e *Engine) IngestPortStats(ctx context.Context, stats []ingest.PortStat) error {
	for i := range stats {
		st := &stats[i]
		if st.RefDes == "" || st.SecondsElapsed <= 0 {
			e.metrics.ReadingsSkipped.Inc()
			e.log.Warn("skipping malformed port stat",
				logger.String("refdes", st.RefDes),
				logger.Float64("elapsed", st.SecondsElapsed))
			continue
		}
		refdes, err := e.resolvePortRefDes(ctx, st.RefDes)
		if err != nil {
			return err
		}
		bucket := &entities.PortCount{
			RefDesID:       refdes.ID,
			CollectedTime:  st.CollectedTime,
			ByteCount:      st.ByteCount,
			SecondsElapsed: st.SecondsElapsed,
		}
		if err := e.counts.AddPortCount(ctx, bucket); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) resolvePortRefDes(ctx context.Context, name string) (*entities.ReferenceDesignator, error) {
	key := "port|" + name
	if cached, ok := e.identityCache.Get(key); ok {
		return cached.(*entities.ReferenceDesignator), nil
	}
	refdes, err := e.streams.ResolveRefDes(ctx, name)
	if err != nil {
		return nil, err
	}
	e.identityCache.SetDefault(key, refdes)
	return refdes, nil
}

// streamEval is one stream's computed state within a cycle.
type streamEval struct {
	stream  *entities.DeployedStream
	status  Status
	elapsed float64
	fiveMin float64
	oneDay  float64
}

// CheckAll classifies every deployed stream, computes per-instrument
// rollups, and records every status transition with its notification.
func (e *Engine) CheckAll(ctx context.Context) error {
	start := e.now()
	defer func() {
		e.metrics.CycleDuration.Observe(e.now().Sub(start).Seconds())
	}()

	streams, err := e.streams.ListStreams(ctx)
	if err != nil {
		return err
	}

	byInstrument := make(map[string][]*entities.DeployedStream)
	for i := range streams {
		name := streams[i].RefDes.Name
		byInstrument[name] = append(byInstrument[name], &streams[i])
	}

	statusTally := make(map[Status]int)
	for refdes, group := range byInstrument {
		evals := make([]streamEval, 0, len(group))
		statuses := make([]Status, 0, len(group))
		for _, stream := range group {
			eval, err := e.evaluate(ctx, stream, start)
			if err != nil {
				return err
			}
			evals = append(evals, eval)
			statuses = append(statuses, eval.status)
			statusTally[eval.status]++
		}

		rollup := Rollup(statuses, e.rollupOrder)
		reason := rollupReason(rollup, evals)
		for i := range evals {
			if err := e.detectChange(ctx, refdes, &evals[i], rollup, reason, start); err != nil {
				return err
			}
		}
	}

	for _, s := range []Status{StatusDisabled, StatusNotTracked, StatusOperational, StatusDegraded, StatusFailed, StatusDead} {
		e.metrics.StreamsByStatus.WithLabelValues(string(s)).Set(float64(statusTally[s]))
	}
	return nil
}

// evaluate computes one stream's current status.
func (e *Engine) evaluate(ctx context.Context, stream *entities.DeployedStream, now time.Time) (streamEval, error) {
	thresholds := ResolveThresholds(stream)

	// A stream that has never produced data ages from its creation
	// time, so it walks through FAILED before the DEAD cutoff instead
	// of being declared DEAD on first classification.
	lastSeen := stream.CreatedAt
	if stream.LastSeen != nil {
		lastSeen = *stream.LastSeen
	}
	elapsed := now.Sub(lastSeen).Seconds()

	rates, err := e.windows.RatesAt(ctx, stream.ID, now)
	if err != nil {
		return streamEval{}, err
	}
	fiveMin := rates.Rate(FiveMinWindow)
	oneDay := rates.Rate(OneDayWindow)

	return streamEval{
		stream:  stream,
		status:  e.classifier.Classify(thresholds, elapsed, fiveMin, oneDay),
		elapsed: elapsed,
		fiveMin: fiveMin,
		oneDay:  oneDay,
	}, nil
}

// rollupReason names the streams responsible for a non-operational
// rollup.
func rollupReason(rollup Status, evals []streamEval) string {
	if rollup == StatusOperational || rollup == StatusNotTracked {
		return string(rollup)
	}
	reason := fmt.Sprintf("%s:", rollup)
	for i := range evals {
		if evals[i].status == rollup {
			reason += " " + evals[i].stream.ExpectedStream.Name
		}
	}
	return reason
}

// detectChange compares the freshly computed status to the persisted
// condition and, on change, writes the new condition and its outbox
// notification in one transaction.
func (e *Engine) detectChange(ctx context.Context, refdes string, eval *streamEval, rollup Status, reason string, now time.Time) error {
	condition, err := e.status.GetCondition(ctx, eval.stream.ID)
	previous := StatusNotTracked
	switch {
	case err == nil:
		previous = Status(condition.LastStatus)
	case errors.Is(err, repository.ErrConditionNotFound):
		// First classification: absence reads as NOT_TRACKED so the
		// initial transition is never suppressed.
		condition = &entities.StreamCondition{DeployedStreamID: eval.stream.ID}
	default:
		return err
	}

	if eval.status == previous {
		return nil
	}

	msg := notifier.NewStatusMessage(
		refdes,
		eval.stream.ExpectedStream.Name,
		eval.stream.ExpectedStream.Method,
		string(previous), string(eval.status),
		eval.elapsed, eval.fiveMin, eval.oneDay, now)
	msg.RollupStatus = string(rollup)
	msg.RollupReason = reason
	msg.Direction = direction(previous, eval.status)

	payload, err := msg.Encode()
	if err != nil {
		return err
	}

	condition.LastStatus = string(eval.status)
	condition.LastStatusTime = now
	update := &entities.PendingUpdate{AssetUID: refdes, Payload: payload}
	if err := e.status.RecordTransition(ctx, condition, update); err != nil {
		return err
	}

	e.log.Info("stream status changed",
		logger.String("refdes", refdes),
		logger.String("stream", eval.stream.ExpectedStream.Name),
		logger.String("previous", string(previous)),
		logger.String("status", string(eval.status)),
		logger.String("rollup", string(rollup)))
	return nil
}

// severityRank orders statuses for the direction indicator. DISABLED
// and NOT_TRACKED rank below OPERATIONAL: entering them reads as an
// improvement over any failure state.
func severityRank(s Status) int {
	switch s {
	case StatusDead:
		return 5
	case StatusFailed:
		return 4
	case StatusDegraded:
		return 3
	case StatusOperational:
		return 2
	default:
		return 1
	}
}

func direction(previous, current Status) string {
	if severityRank(current) > severityRank(previous) {
		return notifier.DirectionDegraded
	}
	return notifier.DirectionImproved
}

// FlushIdentityCache drops the resolver cache. Used when deployed
// streams are modified outside the ingest path.
func (e *Engine) FlushIdentityCache() {
	e.identityCache.Flush()
}
