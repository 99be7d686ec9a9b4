package timeseries

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/timestreamquery"
	"github.com/aws/aws-sdk-go-v2/service/timestreamquery/types"

	"github.com/claude/healthbridge/internal/models"
)

// timestreamTimeLayout is how the query engine renders the time column.
const timestreamTimeLayout = "2006-01-02 15:04:05.000000000"

// QueryAPI is the Timestream query surface the reader needs.
type QueryAPI interface {
	Query(ctx context.Context, params *timestreamquery.QueryInput, optFns ...func(*timestreamquery.Options)) (*timestreamquery.QueryOutput, error)
}

// QueryFilter narrows a read. UserID is required; everything else is
// optional. StartDate bounds the record's actual_start_time from below and
// EndDate bounds its actual_end_time from above.
type QueryFilter struct {
	UserID       string
	ProviderType models.ProviderKind
	Category     models.Category
	StartDate    *time.Time
	EndDate      *time.Time
}

// Reader serves the newest record per (category, day), expanding offloaded
// payloads back from the blob store.
type Reader struct {
	api      QueryAPI
	database string
	table    string
	blobs    *BlobStore
	log      *slog.Logger
}

// NewReader creates a Reader. blobs may be disabled; pointers then stay
// unexpanded as stubs.
func NewReader(api QueryAPI, database, table string, blobs *BlobStore, log *slog.Logger) *Reader {
	return &Reader{api: api, database: database, table: table, blobs: blobs, log: log}
}

// Records returns, for each category and calendar day in range, the most
// recently written record. Rows that fail to parse are skipped with a log
// line rather than failing the whole read.
func (r *Reader) Records(ctx context.Context, f QueryFilter) ([]models.HealthDataRecord, error) {
	if f.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	out, err := r.api.Query(ctx, &timestreamquery.QueryInput{
		QueryString: aws.String(r.buildQuery(f)),
	})
	if err != nil {
		return nil, fmt.Errorf("querying health data: %w", err)
	}

	records := make([]models.HealthDataRecord, 0, len(out.Rows))
	for _, row := range out.Rows {
		rec, err := r.parseRow(ctx, row.Data)
		if err != nil {
			r.log.Warn("skipping unreadable row", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Latest reduces a ranked result set to the first record seen per category.
// Rows arrive newest-day-first, so this is "most recent day with data" for
// each category.
func Latest(records []models.HealthDataRecord) []models.HealthDataRecord {
	seen := make(map[models.Category]bool, len(models.Categories()))
	latest := make([]models.HealthDataRecord, 0, len(models.Categories()))
	for _, rec := range records {
		c := models.Category(rec.Category)
		if seen[c] {
			continue
		}
		seen[c] = true
		latest = append(latest, rec)
	}
	return latest
}

// buildQuery ranks records within each (category, start-date) partition by
// write time and keeps the newest.
func (r *Reader) buildQuery(f QueryFilter) string {
	var conds []string
	conds = append(conds, fmt.Sprintf("user_id = '%s'", escapeQuery(f.UserID)))
	if f.ProviderType != "" {
		conds = append(conds, fmt.Sprintf("provider_type = '%s'", escapeQuery(string(f.ProviderType))))
	}
	if f.Category != "" {
		conds = append(conds, fmt.Sprintf("category = '%s'", escapeQuery(string(f.Category))))
	} else {
		conds = append(conds, "category IN ('daily', 'body', 'sleep')")
	}
	if f.StartDate != nil {
		conds = append(conds, fmt.Sprintf(
			"from_iso8601_timestamp(actual_start_time) >= from_iso8601_timestamp('%s')",
			f.StartDate.Format("2006-01-02")))
	}
	if f.EndDate != nil {
		conds = append(conds, fmt.Sprintf(
			"from_iso8601_timestamp(actual_end_time) <= from_iso8601_timestamp('%s')",
			f.EndDate.Format("2006-01-02")))
	}

	return fmt.Sprintf(`WITH ranked_data AS (
    SELECT provider_type, user_id, category, measure_name, time,
           measure_value::varchar,
           cast(from_iso8601_timestamp(actual_start_time) as date) AS data_date,
           ROW_NUMBER() OVER (
               PARTITION BY category, cast(from_iso8601_timestamp(actual_start_time) as date)
               ORDER BY time DESC
           ) AS rn
    FROM "%s"."%s"
    WHERE %s
)
SELECT provider_type, user_id, category, measure_name, time, measure_value::varchar, data_date
FROM ranked_data
WHERE rn = 1
ORDER BY data_date DESC, category`, r.database, r.table, strings.Join(conds, " AND "))
}

// parseRow maps the positional SELECT columns into a record and expands any
// blob pointer in the payload.
func (r *Reader) parseRow(ctx context.Context, cols []types.Datum) (models.HealthDataRecord, error) {
	if len(cols) < 6 {
		return models.HealthDataRecord{}, fmt.Errorf("row has %d columns, want at least 6", len(cols))
	}

	ts, err := parseRowTime(aws.ToString(cols[4].ScalarValue))
	if err != nil {
		return models.HealthDataRecord{}, err
	}

	var payload map[string]any
	raw := aws.ToString(cols[5].ScalarValue)
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return models.HealthDataRecord{}, fmt.Errorf("decoding measure value: %w", err)
	}
	payload = r.expandBlob(ctx, payload)

	return models.HealthDataRecord{
		ProviderType: aws.ToString(cols[0].ScalarValue),
		UserID:       aws.ToString(cols[1].ScalarValue),
		Category:     aws.ToString(cols[2].ScalarValue),
		MeasureName:  aws.ToString(cols[3].ScalarValue),
		Timestamp:    ts,
		Data:         payload,
	}, nil
}

// expandBlob replaces a guarded payload with its full offloaded form. If the
// fetch fails the stub is returned as-is; a stale pointer must not hide the
// record.
func (r *Reader) expandBlob(ctx context.Context, payload map[string]any) map[string]any {
	key, ok := payload["payload_s3_key"].(string)
	if !ok || key == "" || !r.blobs.Enabled() {
		return payload
	}
	full, err := r.blobs.Get(ctx, key)
	if err != nil {
		r.log.Warn("blob expansion failed, returning stub", "key", key, "error", err)
		return payload
	}
	delete(full, "payload_s3_key")
	return full
}

func parseRowTime(s string) (time.Time, error) {
	if t, err := time.Parse(timestreamTimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing row time %q: %w", s, err)
	}
	return t, nil
}

// escapeQuery doubles single quotes for safe embedding in a query literal.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
