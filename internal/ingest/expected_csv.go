package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oceanobs/streamwatch/internal/datastore/entities"
	"github.com/oceanobs/streamwatch/internal/datastore/repository"
	"github.com/oceanobs/streamwatch/internal/logger"
)

// Warn fires at twice the nominal timeout, fail at ten times.
const (
	warnTimeoutFactor = 2
	failTimeoutFactor = 10
)

// LoadExpectedCSV seeds or updates expected stream definitions from a
// CSV with columns: stream, method, expected rate (Hz), timeout.
// Returns the number of definitions upserted. Rows with unparsable
// numbers are skipped with a warning.
func LoadExpectedCSV(ctx context.Context, r io.Reader, streams repository.StreamRepository, log logger.Logger) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read csv header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"stream", "method", "expected rate (hz)", "timeout"} {
		if _, ok := cols[required]; !ok {
			return 0, fmt.Errorf("csv missing required column %q", required)
		}
	}

	loaded := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return loaded, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		stream := strings.TrimSpace(record[cols["stream"]])
		method := strings.TrimSpace(record[cols["method"]])
		if stream == "" || method == "" {
			log.Warn("skipping csv row with empty stream or method", logger.Int("line", line))
			continue
		}
		rate, rateErr := strconv.ParseFloat(strings.TrimSpace(record[cols["expected rate (hz)"]]), 64)
		timeout, timeoutErr := strconv.Atoi(strings.TrimSpace(record[cols["timeout"]]))
		if rateErr != nil || timeoutErr != nil {
			log.Warn("skipping csv row with unparsable numbers",
				logger.Int("line", line), logger.String("stream", stream))
			continue
		}

		expected := &entities.ExpectedStream{
			Name:         stream,
			Method:       method,
			Rate:         rate,
			WarnInterval: timeout * warnTimeoutFactor,
			FailInterval: timeout * failTimeoutFactor,
		}
		if err := streams.UpsertExpected(ctx, expected); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
