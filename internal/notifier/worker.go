package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/oceanobs/streamwatch/internal/conf"
	"github.com/oceanobs/streamwatch/internal/datastore/entities"
	"github.com/oceanobs/streamwatch/internal/datastore/repository"
	"github.com/oceanobs/streamwatch/internal/logger"
	"github.com/oceanobs/streamwatch/internal/observability/metrics"
)

// Worker drains the pending-update outbox, posting each message to the
// event service in insertion order. Delivery is at-least-once: a row is
// only removed after a 2xx response, or after the retry budget is spent
// on client-error rejections. Server errors and network failures leave
// the row untouched for the next pass.
type Worker struct {
	repo    repository.StatusRepository
	client  *http.Client
	log     logger.Logger
	metrics *metrics.Collectors

	eventURL    string
	retryBudget int
}

// NewWorker creates a delivery worker. The HTTP client timeout bounds
// every POST; a timed-out request is treated as a network failure.
func NewWorker(repo repository.StatusRepository, settings *conf.NotifierSettings, m *metrics.Collectors, log logger.Logger) *Worker {
	return &Worker{
		repo:        repo,
		client:      &http.Client{Timeout: settings.Timeout.Std()},
		log:         log,
		metrics:     m,
		eventURL:    settings.EventURL,
		retryBudget: settings.RetryBudget,
	}
}

// Process runs one delivery pass over the whole outbox. A failure on
// one message never aborts the batch.
func (w *Worker) Process(ctx context.Context) error {
	pending, err := w.repo.PendingInOrder(ctx, 0)
	if err != nil {
		return err
	}
	for i := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.deliver(ctx, &pending[i])
	}
	w.observeDepth(ctx)
	return nil
}

func (w *Worker) deliver(ctx context.Context, update *entities.PendingUpdate) {
	msg, err := DecodeMessage(update.Payload)
	if err != nil {
		// An undecodable payload can never succeed; treat it like a
		// rejected message so it consumes its budget and drops out.
		w.log.Error("undecodable pending update",
			logger.Uint64("id", uint64(update.ID)),
			logger.Error(err))
		w.countClientError(ctx, update)
		return
	}

	status, err := w.post(ctx, update.AssetUID, msg.EventBody())
	if err != nil {
		// Network failure or timeout: leave the row untouched and move
		// on so one unreachable endpoint cannot stall the queue.
		w.log.Error("event post failed",
			logger.Uint64("id", uint64(update.ID)),
			logger.String("asset_uid", update.AssetUID),
			logger.Error(err))
		return
	}

	switch {
	case status >= 200 && status < 300:
		if err := w.repo.DeletePending(ctx, update.ID); err != nil {
			w.log.Error("failed to delete delivered update",
				logger.Uint64("id", uint64(update.ID)), logger.Error(err))
			return
		}
		w.metrics.NotificationsDelivered.Inc()
		w.log.Info("status event delivered",
			logger.Uint64("id", uint64(update.ID)),
			logger.String("asset_uid", update.AssetUID),
			logger.String("message_id", msg.MessageID))
	case status >= 400 && status < 500:
		// Client rejection counts against the budget; the payload is
		// presumed malformed and will never succeed.
		w.log.Warn("event post rejected",
			logger.Uint64("id", uint64(update.ID)),
			logger.Int("status", status),
			logger.Int("error_count", update.ErrorCount+1))
		w.countClientError(ctx, update)
	default:
		// Server-side failure is transient and does not consume the
		// budget; the budget bounds bad payloads, not outages.
		w.log.Error("event service error",
			logger.Uint64("id", uint64(update.ID)),
			logger.Int("status", status))
	}
}

func (w *Worker) countClientError(ctx context.Context, update *entities.PendingUpdate) {
	count, err := w.repo.IncrementPendingError(ctx, update.ID)
	if err != nil {
		w.log.Error("failed to increment error count",
			logger.Uint64("id", uint64(update.ID)), logger.Error(err))
		return
	}
	if count > w.retryBudget {
		if err := w.repo.DeletePending(ctx, update.ID); err != nil {
			w.log.Error("failed to drop poisoned update",
				logger.Uint64("id", uint64(update.ID)), logger.Error(err))
			return
		}
		w.metrics.NotificationsDropped.Inc()
		w.log.Error("pending update dropped after retry budget",
			logger.Uint64("id", uint64(update.ID)),
			logger.String("asset_uid", update.AssetUID),
			logger.Int("error_count", count))
	}
}

// post sends one event and returns the HTTP status code. The asset UID
// is the final path segment of the event endpoint.
func (w *Worker) post(ctx context.Context, assetUID string, body *EventBody) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event body: %w", err)
	}
	url := fmt.Sprintf("%s/%s", w.eventURL, assetUID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode, nil
}

func (w *Worker) observeDepth(ctx context.Context) {
	depth, err := w.repo.CountPending(ctx)
	if err != nil {
		w.log.Error("failed to count outbox depth", logger.Error(err))
		return
	}
	w.metrics.OutboxDepth.Set(float64(depth))
}
