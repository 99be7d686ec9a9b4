// Package sync implements the export-directory agent: it walks a directory
// of provider payload files exported by companion apps, skips files already
// sent, and ships the rest to the server's batch endpoint.
package sync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/claude/healthbridge/internal/models"
)

// Stats tracks sync progress.
type Stats struct {
	FilesTotal   int
	FilesSynced  int
	FilesSkipped int
	FilesErrored int

	RecordsSent   int
	RecordsFailed int
	BatchesSent   int
	StoredRecords models.StoredRecords
}

// Agent walks an export directory, validates payload files, and POSTs them
// to the HealthBridge batch endpoint.
type Agent struct {
	client    *Client
	state     *StateDB
	exportDir string
	dryRun    bool
	batchSize int
	log       *slog.Logger
	stats     Stats
}

// New creates a new Agent.
func New(client *Client, state *StateDB, exportDir string, dryRun bool, batchSize int, log *slog.Logger) *Agent {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Agent{
		client:    client,
		state:     state,
		exportDir: exportDir,
		dryRun:    dryRun,
		batchSize: batchSize,
		log:       log,
	}
}

// pending is one validated file waiting for a batch slot.
type pending struct {
	relPath string
	size    int64
	hash    string
	payload json.RawMessage
}

// Run executes the sync pipeline: collect, dedup, batch, send.
func (a *Agent) Run() (*Stats, error) {
	files, err := filepath.Glob(filepath.Join(a.exportDir, "*.json"))
	if err != nil {
		return &a.stats, fmt.Errorf("listing export dir: %w", err)
	}
	sort.Strings(files)

	var batch []pending
	for _, f := range files {
		a.stats.FilesTotal++

		p, skip, err := a.examine(f)
		if err != nil {
			a.log.Warn("skipping file", "file", f, "error", err)
			a.stats.FilesErrored++
			continue
		}
		if skip {
			a.stats.FilesSkipped++
			continue
		}

		batch = append(batch, p)
		if len(batch) >= a.batchSize {
			if err := a.flush(batch); err != nil {
				return &a.stats, err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := a.flush(batch); err != nil {
			return &a.stats, err
		}
	}

	return &a.stats, nil
}

// examine validates one file and decides whether it still needs syncing.
func (a *Agent) examine(path string) (pending, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return pending{}, false, err
	}
	hash, err := HashFile(path)
	if err != nil {
		return pending{}, false, err
	}

	relPath, err := filepath.Rel(a.exportDir, path)
	if err != nil {
		relPath = path
	}

	synced, err := a.state.IsSynced(relPath, info.Size(), hash)
	if err != nil {
		return pending{}, false, err
	}
	if synced {
		return pending{}, true, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return pending{}, false, err
	}

	// Reject files that are not a single health data request before they
	// reach the server.
	var req models.HealthDataRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return pending{}, false, fmt.Errorf("not a valid payload: %w", err)
	}
	if req.UserID == "" || !req.ProviderType.Valid() {
		return pending{}, false, fmt.Errorf("payload missing user_id or provider_type")
	}

	return pending{
		relPath: relPath,
		size:    info.Size(),
		hash:    hash,
		payload: json.RawMessage(data),
	}, false, nil
}

// flush sends one batch and marks its files synced.
func (a *Agent) flush(batch []pending) error {
	if a.dryRun {
		a.log.Info("dry run: would send batch", "files", len(batch))
		a.stats.FilesSynced += len(batch)
		a.stats.RecordsSent += len(batch)
		return nil
	}

	items := make([]json.RawMessage, len(batch))
	for i, p := range batch {
		items[i] = p.payload
	}

	result, err := a.client.SendBatch(items)
	if err != nil {
		a.stats.FilesErrored += len(batch)
		return fmt.Errorf("sending batch of %d: %w", len(batch), err)
	}

	a.stats.BatchesSent++
	a.stats.RecordsSent += result.Processed
	a.stats.RecordsFailed += result.Failed
	a.stats.StoredRecords.Daily += result.Stored.Daily
	a.stats.StoredRecords.Body += result.Stored.Body
	a.stats.StoredRecords.Sleep += result.Stored.Sleep

	// Per-item failures come back indexed; only mark the clean files.
	failed := make(map[int]bool, len(result.Errors))
	for _, e := range result.Errors {
		failed[e.Index] = true
	}
	for i, p := range batch {
		if failed[i] {
			a.stats.FilesErrored++
			a.log.Warn("server rejected payload", "file", p.relPath)
			continue
		}
		if err := a.state.MarkSynced(p.relPath, p.size, p.hash); err != nil {
			a.log.Warn("state update failed", "file", p.relPath, "error", err)
		}
		a.stats.FilesSynced++
	}

	return nil
}
