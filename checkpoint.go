package pyferris

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Checkpoint is a persisted record of operation state and progress.
type Checkpoint struct {
	ID        string            `json:"id"`
	Operation string            `json:"operation"`
	State     map[string]string `json:"state"`
	Progress  float64           `json:"progress"`
	Timestamp int64             `json:"timestamp"` // epoch microseconds
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CheckpointManager persists and restores checkpoints as pretty-printed
// JSON files directly under Dir, one file per checkpoint named
// "<id>.json". No index file; no locking between concurrent managers
// pointing at the same directory.
type CheckpointManager struct {
	Dir            string
	MaxCheckpoints int
	clock          clockz.Clock
}

// NewCheckpointManager creates a manager rooted at dir. maxCheckpoints
// <= 0 means unbounded retention.
func NewCheckpointManager(dir string, maxCheckpoints int) *CheckpointManager {
	return &CheckpointManager{Dir: dir, MaxCheckpoints: maxCheckpoints, clock: clockz.RealClock}
}

// WithClock sets a custom clock, used for the checkpoint ID's timestamp
// component, so tests can control it deterministically.
func (m *CheckpointManager) WithClock(c clockz.Clock) *CheckpointManager {
	m.clock = c
	return m
}

// Save composes a checkpoint ID, writes the record atomically, then
// enforces retention for operationID.
func (m *CheckpointManager) Save(operationID string, state map[string]string, progress float64, metadata map[string]string) (string, error) {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return "", &Error{Kind: InvalidArgument, Err: err}
	}

	now := m.clock.Now()
	id := fmt.Sprintf("%s_%d_%s", operationID, now.UnixMilli(), uuid.New().String()[:8])
	ck := Checkpoint{
		ID:        id,
		Operation: operationID,
		State:     state,
		Progress:  progress,
		Timestamp: now.UnixMicro(),
		Metadata:  metadata,
	}

	data, err := json.MarshalIndent(ck, "", "  ")
	if err != nil {
		return "", &Error{Kind: InvalidArgument, Err: err}
	}

	path := filepath.Join(m.Dir, id+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", &Error{Kind: InvalidArgument, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", &Error{Kind: InvalidArgument, Err: err}
	}

	capitan.Info(context.Background(), SignalCheckpointSaved,
		FieldCheckpointID.Field(id), FieldOperationID.Field(operationID),
	)

	if err := m.trim(operationID); err != nil {
		return id, err
	}
	return id, nil
}

// trim deletes the oldest checkpoints for operationID past
// MaxCheckpoints.
func (m *CheckpointManager) trim(operationID string) error {
	if m.MaxCheckpoints <= 0 {
		return nil
	}
	all, err := m.List(operationID)
	if err != nil {
		return err
	}
	// List returns descending by timestamp; oldest are at the tail.
	if len(all) <= m.MaxCheckpoints {
		return nil
	}
	toDelete := all[m.MaxCheckpoints:]
	for _, ck := range toDelete {
		if err := m.Delete(ck.ID); err != nil {
			return err
		}
	}
	capitan.Info(context.Background(), SignalCheckpointTrimmed,
		FieldOperationID.Field(operationID), FieldRetained.Field(m.MaxCheckpoints),
	)
	return nil
}

// Restore reads and parses <dir>/<id>.json.
func (m *CheckpointManager) Restore(id string) (*Checkpoint, error) {
	path := filepath.Join(m.Dir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Kind: NotFound, Err: err}
		}
		return nil, &Error{Kind: InvalidArgument, Err: err}
	}
	var ck Checkpoint
	if err := json.Unmarshal(data, &ck); err != nil {
		return nil, &Error{Kind: InvalidArgument, Err: fmt.Errorf("decode checkpoint %s: %w", id, err)}
	}
	capitan.Info(context.Background(), SignalCheckpointRestored, FieldCheckpointID.Field(id))
	return &ck, nil
}

// List scans Dir, parses every .json file, optionally filters by
// operationID (empty string means no filter), and returns the results
// sorted by timestamp descending.
func (m *CheckpointManager) List(operationID string) ([]*Checkpoint, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &Error{Kind: InvalidArgument, Err: err}
	}

	var out []*Checkpoint
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.Dir, e.Name()))
		if err != nil {
			continue
		}
		var ck Checkpoint
		if err := json.Unmarshal(data, &ck); err != nil {
			continue
		}
		if operationID != "" && ck.Operation != operationID {
			continue
		}
		out = append(out, &ck)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

// GetLatestCheckpoint returns the most recent checkpoint for
// operationID, or a NotFound error if none exist.
func (m *CheckpointManager) GetLatestCheckpoint(operationID string) (*Checkpoint, error) {
	all, err := m.List(operationID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, &Error{Kind: NotFound, Err: fmt.Errorf("no checkpoints for %s", operationID)}
	}
	return all[0], nil
}

// Delete removes <dir>/<id>.json.
func (m *CheckpointManager) Delete(id string) error {
	err := os.Remove(filepath.Join(m.Dir, id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return &Error{Kind: InvalidArgument, Err: err}
	}
	return nil
}

// CheckpointStats summarizes an operation's checkpoint history.
type CheckpointStats struct {
	Count       int
	LatestID    string
	LatestTime  int64
	MaxProgress float64
}

// Stats returns retention/progress summary statistics for operationID.
func (m *CheckpointManager) Stats(operationID string) (CheckpointStats, error) {
	all, err := m.List(operationID)
	if err != nil {
		return CheckpointStats{}, err
	}
	stats := CheckpointStats{Count: len(all)}
	if len(all) > 0 {
		stats.LatestID = all[0].ID
		stats.LatestTime = all[0].Timestamp
	}
	for _, ck := range all {
		if ck.Progress > stats.MaxProgress {
			stats.MaxProgress = ck.Progress
		}
	}
	return stats, nil
}

// AutoCheckpoint wraps a CheckpointManager, saving on an interval
// instead of on every call.
type AutoCheckpoint struct {
	mu              sync.Mutex
	manager         *CheckpointManager
	operationID     string
	interval        time.Duration
	lastCheckpoint  time.Time
	hasCheckpointed bool
	clock           clockz.Clock
}

// NewAutoCheckpoint creates an AutoCheckpoint wrapping manager for a
// single operationID.
func NewAutoCheckpoint(manager *CheckpointManager, operationID string, interval time.Duration) *AutoCheckpoint {
	return &AutoCheckpoint{manager: manager, operationID: operationID, interval: interval, clock: clockz.RealClock}
}

// WithClock sets a custom clock for testing.
func (a *AutoCheckpoint) WithClock(c clockz.Clock) *AutoCheckpoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clock = c
	return a
}

// MaybeCheckpoint saves iff no checkpoint has been taken yet, or the
// interval has elapsed since the last one, then updates the timestamp.
// It reports whether a save occurred.
func (a *AutoCheckpoint) MaybeCheckpoint(state map[string]string, progress float64) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock.Now()
	if a.hasCheckpointed && now.Sub(a.lastCheckpoint) < a.interval {
		return false, nil
	}
	if _, err := a.manager.Save(a.operationID, state, progress, nil); err != nil {
		return false, err
	}
	a.lastCheckpoint = now
	a.hasCheckpointed = true
	return true, nil
}

// ForceCheckpoint always saves and updates the timestamp.
func (a *AutoCheckpoint) ForceCheckpoint(state map[string]string, progress float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.manager.Save(a.operationID, state, progress, nil); err != nil {
		return err
	}
	a.lastCheckpoint = a.clock.Now()
	a.hasCheckpointed = true
	return nil
}
