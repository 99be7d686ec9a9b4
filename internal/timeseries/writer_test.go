package timeseries

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/timestreamwrite"
	"github.com/aws/aws-sdk-go-v2/service/timestreamwrite/types"

	"github.com/claude/healthbridge/internal/models"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeWriteAPI records the last WriteRecords input and returns a canned error.
type fakeWriteAPI struct {
	input *timestreamwrite.WriteRecordsInput
	err   error
}

func (f *fakeWriteAPI) WriteRecords(_ context.Context, params *timestreamwrite.WriteRecordsInput, _ ...func(*timestreamwrite.Options)) (*timestreamwrite.WriteRecordsOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &timestreamwrite.WriteRecordsOutput{}, nil
}

// fakeS3 stores objects in a map keyed by object key.
type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[aws.ToString(params.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(body)))}, nil
}

func testWriter(api WriteAPI, blobs *BlobStore, at time.Time) *Writer {
	w := NewWriter(api, "healthdb", "records", blobs, discardLog())
	w.now = func() time.Time { return at }
	return w
}

// TestWriterDimensions verifies the full record shape: dimension set and
// order, measure name and type, and time/version stamped from the same
// instant in epoch milliseconds.
func TestWriterDimensions(t *testing.T) {
	api := &fakeWriteAPI{}
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	w := testWriter(api, nil, now)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)
	err := w.Write(context.Background(), "u1", models.ProviderAppleHealth, models.CategoryDaily,
		map[string]any{"metadata": map[string]any{}}, start, end, "Europe/London")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if aws.ToString(api.input.DatabaseName) != "healthdb" || aws.ToString(api.input.TableName) != "records" {
		t.Errorf("target = %s.%s", aws.ToString(api.input.DatabaseName), aws.ToString(api.input.TableName))
	}
	if len(api.input.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(api.input.Records))
	}
	rec := api.input.Records[0]

	wantDims := map[string]string{
		"user_id":           "u1",
		"provider_type":     "APPLE_HEALTH",
		"category":          "daily",
		"actual_start_time": "2025-03-01T00:00:00Z",
		"actual_end_time":   "2025-03-01T23:00:00Z",
		"local_timezone":    "Europe/London",
	}
	if len(rec.Dimensions) != len(wantDims) {
		t.Fatalf("dimensions = %d, want %d", len(rec.Dimensions), len(wantDims))
	}
	for _, d := range rec.Dimensions {
		if wantDims[aws.ToString(d.Name)] != aws.ToString(d.Value) {
			t.Errorf("dimension %s = %q, want %q", aws.ToString(d.Name), aws.ToString(d.Value), wantDims[aws.ToString(d.Name)])
		}
	}

	if aws.ToString(rec.MeasureName) != MeasureName {
		t.Errorf("measure name = %q", aws.ToString(rec.MeasureName))
	}
	if rec.MeasureValueType != types.MeasureValueTypeVarchar {
		t.Errorf("measure type = %v", rec.MeasureValueType)
	}
	if aws.ToString(rec.Time) != "1740916800000" {
		t.Errorf("time = %q, want %q", aws.ToString(rec.Time), "1740916800000")
	}
	if rec.Version == nil || *rec.Version != now.UnixMilli() {
		t.Errorf("version = %v, want %d", rec.Version, now.UnixMilli())
	}
}

// TestWriterDefaultsTimezoneAndEnd verifies a zero end falls back to start
// and an empty timezone becomes UTC.
func TestWriterDefaultsTimezoneAndEnd(t *testing.T) {
	api := &fakeWriteAPI{}
	w := testWriter(api, nil, time.Now())

	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	if err := w.Write(context.Background(), "u1", models.ProviderHealthConnect, models.CategoryBody,
		map[string]any{}, start, time.Time{}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dims := map[string]string{}
	for _, d := range api.input.Records[0].Dimensions {
		dims[aws.ToString(d.Name)] = aws.ToString(d.Value)
	}
	if dims["actual_end_time"] != dims["actual_start_time"] {
		t.Errorf("end = %q, want same as start %q", dims["actual_end_time"], dims["actual_start_time"])
	}
	if dims["local_timezone"] != "UTC" {
		t.Errorf("timezone = %q, want UTC", dims["local_timezone"])
	}
}

// TestWriterInvalidWindow verifies start after end is rejected before any
// store call.
func TestWriterInvalidWindow(t *testing.T) {
	api := &fakeWriteAPI{}
	w := testWriter(api, nil, time.Now())

	start := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	err := w.Write(context.Background(), "u1", models.ProviderAppleHealth, models.CategoryDaily,
		map[string]any{}, start, end, "UTC")
	if !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("err = %v, want ErrInvalidWindow", err)
	}
	if api.input != nil {
		t.Errorf("store was called despite invalid window")
	}
}

// TestWriterNonObjectPayload verifies category data that does not serialize
// to a JSON object is a validation error.
func TestWriterNonObjectPayload(t *testing.T) {
	w := testWriter(&fakeWriteAPI{}, nil, time.Now())
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	err := w.Write(context.Background(), "u1", models.ProviderAppleHealth, models.CategoryDaily,
		[]string{"not", "an", "object"}, at, at, "UTC")
	if err == nil {
		t.Errorf("expected error for non-object payload")
	}
}

// TestWriterRejectionClassified verifies a store rejection surfaces as
// ErrRejected rather than a generic error.
func TestWriterRejectionClassified(t *testing.T) {
	api := &fakeWriteAPI{err: &types.RejectedRecordsException{
		Message: aws.String("duplicate value for version"),
		RejectedRecords: []types.RejectedRecord{
			{Reason: aws.String("A higher version exists"), ExistingVersion: aws.Int64(99)},
		},
	}}
	w := testWriter(api, nil, time.Now())

	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	err := w.Write(context.Background(), "u1", models.ProviderAppleHealth, models.CategoryDaily,
		map[string]any{}, at, at, "UTC")
	if !errors.Is(err, ErrRejected) {
		t.Errorf("err = %v, want ErrRejected", err)
	}
}

// TestWriterOffloadsBlob verifies the full payload lands in the blob store
// and the stored measure value carries the pointer key.
func TestWriterOffloadsBlob(t *testing.T) {
	api := &fakeWriteAPI{}
	s3api := &fakeS3{}
	blobs := NewBlobStore(s3api, "health-blobs", "")
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	w := testWriter(api, blobs, now)

	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := w.Write(context.Background(), "u1", models.ProviderAppleHealth, models.CategoryDaily,
		map[string]any{"metadata": map[string]any{}}, at, at, "UTC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(s3api.objects) != 1 {
		t.Fatalf("blob objects = %d, want 1", len(s3api.objects))
	}

	var value map[string]any
	if err := json.Unmarshal([]byte(aws.ToString(api.input.Records[0].MeasureValue)), &value); err != nil {
		t.Fatalf("measure value not JSON: %v", err)
	}
	key, _ := value["payload_s3_key"].(string)
	if key == "" {
		t.Fatalf("measure value missing payload_s3_key: %v", value)
	}
	if _, ok := s3api.objects[key]; !ok {
		t.Errorf("pointer %q does not match a stored object", key)
	}
	if !strings.HasPrefix(key, "health-data/u1/APPLE_HEALTH/daily/2025-03-01/") {
		t.Errorf("key = %q, unexpected layout", key)
	}
}

// TestWriterOffloadFailureIsSoft verifies a failed upload only drops the
// pointer; the write itself proceeds.
func TestWriterOffloadFailureIsSoft(t *testing.T) {
	api := &fakeWriteAPI{}
	s3api := &fakeS3{putErr: errors.New("bucket unavailable")}
	blobs := NewBlobStore(s3api, "health-blobs", "")
	w := testWriter(api, blobs, time.Now())

	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := w.Write(context.Background(), "u1", models.ProviderAppleHealth, models.CategoryDaily,
		map[string]any{"metadata": map[string]any{}}, at, at, "UTC"); err != nil {
		t.Fatalf("write should survive offload failure, got %v", err)
	}

	var value map[string]any
	if err := json.Unmarshal([]byte(aws.ToString(api.input.Records[0].MeasureValue)), &value); err != nil {
		t.Fatalf("measure value not JSON: %v", err)
	}
	if _, ok := value["payload_s3_key"]; ok {
		t.Errorf("pointer present despite failed upload")
	}
}
