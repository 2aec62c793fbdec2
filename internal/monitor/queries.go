package monitor

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/oceanobs/streamwatch/internal/datastore/entities"
	"github.com/oceanobs/streamwatch/internal/datastore/repository"
)

// StreamStatus is the externally visible state of one deployed stream.
type StreamStatus struct {
	StreamID   uint       `json:"stream_id"`
	RefDes     string     `json:"ref_des"`
	Stream     string     `json:"stream"`
	Method     string     `json:"method"`
	Status     Status     `json:"status"`
	StatusTime *time.Time `json:"status_time"`
	LastSeen   *time.Time `json:"last_seen"`
	// WindowRates holds the current mean rate per lookback window,
	// keyed by window length. Populated only on single-stream detail.
	WindowRates map[string]float64 `json:"window_rates,omitempty"`
}

// InstrumentStatus is one instrument's rollup with per-stream detail.
type InstrumentStatus struct {
	RefDes  string         `json:"ref_des"`
	Status  Status         `json:"status"`
	Streams []StreamStatus `json:"streams"`
}

// SiteStatus is one site's rollup across its instruments.
type SiteStatus struct {
	Site        string             `json:"site"`
	Status      Status             `json:"status"`
	Instruments []InstrumentStatus `json:"instruments"`
}

// Queries answers the outward status questions from persisted state. It
// never recomputes classifications; the evaluation cycle owns those.
type Queries struct {
	streams     repository.StreamRepository
	status      repository.StatusRepository
	windows     *WindowEngine
	rollupOrder []Status
}

// NewQueries creates the query layer sharing the engine's rollup order.
// The window engine carries the full configured window set and serves
// the per-stream rate detail; nil disables it.
func NewQueries(streams repository.StreamRepository, status repository.StatusRepository, windows *WindowEngine, rollupOrder []Status) *Queries {
	return &Queries{streams: streams, status: status, windows: windows, rollupOrder: rollupOrder}
}

func (q *Queries) streamStatus(ctx context.Context, stream *entities.DeployedStream) (StreamStatus, error) {
	out := StreamStatus{
		StreamID: stream.ID,
		RefDes:   stream.RefDes.Name,
		Stream:   stream.ExpectedStream.Name,
		Method:   stream.ExpectedStream.Method,
		Status:   StatusNotTracked,
		LastSeen: stream.LastSeen,
	}
	condition, err := q.status.GetCondition(ctx, stream.ID)
	switch {
	case err == nil:
		out.Status = Status(condition.LastStatus)
		t := condition.LastStatusTime
		out.StatusTime = &t
	case errors.Is(err, repository.ErrConditionNotFound):
		// Never classified yet; NOT_TRACKED stands.
	default:
		return StreamStatus{}, err
	}
	return out, nil
}

// StreamStatusByID returns the persisted status of one stream.
func (q *Queries) StreamStatusByID(ctx context.Context, id uint) (*StreamStatus, error) {
	stream, err := q.streams.GetStream(ctx, id)
	if err != nil {
		return nil, err
	}
	status, err := q.streamStatus(ctx, stream)
	if err != nil {
		return nil, err
	}
	if q.windows != nil {
		rates, err := q.windows.RatesAt(ctx, stream.ID, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		status.WindowRates = make(map[string]float64, len(rates))
		for window, agg := range rates {
			status.WindowRates[window.String()] = agg.Rate()
		}
	}
	return &status, nil
}

// InstrumentStatusByRefDes returns one instrument's rollup and detail.
func (q *Queries) InstrumentStatusByRefDes(ctx context.Context, refdes string) (*InstrumentStatus, error) {
	streams, err := q.streams.ListStreamsByRefDes(ctx, refdes)
	if err != nil {
		return nil, err
	}
	if len(streams) == 0 {
		return nil, repository.ErrStreamNotFound
	}
	return q.instrumentStatus(ctx, refdes, streams)
}

func (q *Queries) instrumentStatus(ctx context.Context, refdes string, streams []entities.DeployedStream) (*InstrumentStatus, error) {
	out := &InstrumentStatus{RefDes: refdes}
	statuses := make([]Status, 0, len(streams))
	for i := range streams {
		status, err := q.streamStatus(ctx, &streams[i])
		if err != nil {
			return nil, err
		}
		out.Streams = append(out.Streams, status)
		statuses = append(statuses, status.Status)
	}
	out.Status = Rollup(statuses, q.rollupOrder)
	return out, nil
}

// SiteStatusByPrefix rolls up every instrument whose reference
// designator begins with the site prefix.
func (q *Queries) SiteStatusByPrefix(ctx context.Context, site string) (*SiteStatus, error) {
	streams, err := q.streams.ListStreams(ctx)
	if err != nil {
		return nil, err
	}

	byInstrument := make(map[string][]entities.DeployedStream)
	for i := range streams {
		name := streams[i].RefDes.Name
		if !strings.HasPrefix(name, site) {
			continue
		}
		byInstrument[name] = append(byInstrument[name], streams[i])
	}
	if len(byInstrument) == 0 {
		return nil, repository.ErrStreamNotFound
	}

	out := &SiteStatus{Site: site}
	statuses := make([]Status, 0, len(byInstrument))
	for refdes, group := range byInstrument {
		instrument, err := q.instrumentStatus(ctx, refdes, group)
		if err != nil {
			return nil, err
		}
		out.Instruments = append(out.Instruments, *instrument)
		statuses = append(statuses, instrument.Status)
	}
	sortInstruments(out.Instruments)
	out.Status = Rollup(statuses, q.rollupOrder)
	return out, nil
}

// StatusCounts tallies streams per status, feeding the digest summary.
func (q *Queries) StatusCounts(ctx context.Context) (map[Status]int, error) {
	streams, err := q.streams.ListStreams(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[Status]int)
	for i := range streams {
		status, err := q.streamStatus(ctx, &streams[i])
		if err != nil {
			return nil, err
		}
		counts[status.Status]++
	}
	return counts, nil
}

func sortInstruments(instruments []InstrumentStatus) {
	sort.Slice(instruments, func(i, j int) bool {
		return instruments[i].RefDes < instruments[j].RefDes
	})
}
