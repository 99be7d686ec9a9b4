package timeseries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/timestreamwrite"
	"github.com/aws/aws-sdk-go-v2/service/timestreamwrite/types"

	"github.com/claude/healthbridge/internal/models"
)

// MeasureName is the single measure every health record is written under;
// dimensions carry the partitioning.
const MeasureName = "health_data"

var (
	// ErrInvalidWindow rejects writes whose start is after their end.
	ErrInvalidWindow = errors.New("start_time must not be after end_time")

	// ErrRejected marks a store-side rejection (e.g. duplicate with a lower
	// version). The rejection reason is logged; the caller decides whether
	// this is a partial failure.
	ErrRejected = errors.New("record rejected by time-series store")
)

// WriteAPI is the Timestream write surface the writer needs.
type WriteAPI interface {
	WriteRecords(ctx context.Context, params *timestreamwrite.WriteRecordsInput, optFns ...func(*timestreamwrite.Options)) (*timestreamwrite.WriteRecordsOutput, error)
}

// Writer builds dimensioned, versioned records and writes them to the
// time-series store. Record time and version are both "now" in epoch
// milliseconds, so retries of the same logical write resolve last-writer-wins
// in the store.
type Writer struct {
	api      WriteAPI
	database string
	table    string
	blobs    *BlobStore
	log      *slog.Logger
	now      func() time.Time
}

// NewWriter creates a Writer. blobs may be disabled (see BlobStore.Enabled);
// offloading is an optimization, never a correctness condition of the write.
func NewWriter(api WriteAPI, database, table string, blobs *BlobStore, log *slog.Logger) *Writer {
	return &Writer{
		api:      api,
		database: database,
		table:    table,
		blobs:    blobs,
		log:      log,
		now:      time.Now,
	}
}

// Write persists one canonical category record for a user. The full payload
// is offloaded to the blob store before size-guarding; offload failure is
// soft and only drops the pointer. Validation failures and store errors are
// returned; store rejections come back wrapped in ErrRejected.
func (w *Writer) Write(ctx context.Context, userID string, provider models.ProviderKind, category models.Category, data any, start, end time.Time, localTZ string) error {
	if end.IsZero() {
		end = start
	}
	if start.IsZero() {
		return fmt.Errorf("%w: missing start_time", ErrInvalidWindow)
	}
	if start.After(end) {
		return ErrInvalidWindow
	}
	if localTZ == "" {
		localTZ = "UTC"
	}

	payload, err := toPayloadMap(data)
	if err != nil {
		return err
	}

	now := w.now()
	if w.blobs.Enabled() {
		key := w.blobs.Key(userID, provider, category, start, now)
		if err := w.blobs.Put(ctx, key, payload); err != nil {
			w.log.Error("full payload offload failed", "key", key, "error", err)
		} else {
			payload["payload_s3_key"] = key
		}
	}

	value, err := Guard(payload)
	if err != nil {
		return err
	}

	nowMillis := now.UnixMilli()
	record := types.Record{
		Dimensions: []types.Dimension{
			{Name: aws.String("user_id"), Value: aws.String(userID)},
			{Name: aws.String("provider_type"), Value: aws.String(string(provider))},
			{Name: aws.String("category"), Value: aws.String(string(category))},
			{Name: aws.String("actual_start_time"), Value: aws.String(start.Format(time.RFC3339))},
			{Name: aws.String("actual_end_time"), Value: aws.String(end.Format(time.RFC3339))},
			{Name: aws.String("local_timezone"), Value: aws.String(localTZ)},
		},
		MeasureName:      aws.String(MeasureName),
		MeasureValue:     aws.String(value),
		MeasureValueType: types.MeasureValueTypeVarchar,
		Time:             aws.String(strconv.FormatInt(nowMillis, 10)),
		TimeUnit:         types.TimeUnitMilliseconds,
		Version:          aws.Int64(nowMillis),
	}

	_, err = w.api.WriteRecords(ctx, &timestreamwrite.WriteRecordsInput{
		DatabaseName: aws.String(w.database),
		TableName:    aws.String(w.table),
		Records:      []types.Record{record},
	})
	if err != nil {
		var rejected *types.RejectedRecordsException
		if errors.As(err, &rejected) {
			for _, r := range rejected.RejectedRecords {
				w.log.Error("record rejected",
					"user_id", userID,
					"category", category,
					"reason", aws.ToString(r.Reason),
					"existing_version", r.ExistingVersion,
				)
			}
			return fmt.Errorf("%w: %s", ErrRejected, rejected.ErrorMessage())
		}
		return fmt.Errorf("writing %s record: %w", category, err)
	}

	w.log.Info("health data written",
		"user_id", userID,
		"provider", provider,
		"category", category,
		"start", start.Format(time.RFC3339),
		"end", end.Format(time.RFC3339),
		"value_bytes", len(value),
	)
	return nil
}

// toPayloadMap round-trips a canonical record through JSON into the generic
// map the guard and blob store operate on. Anything that is not a JSON
// object is a validation error.
func toPayloadMap(data any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("category data cannot be serialized: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("category data must be a JSON object: %w", err)
	}
	return m, nil
}
