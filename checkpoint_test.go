package pyferris

import (
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestCheckpointSaveAndRestore(t *testing.T) {
	dir := t.TempDir()
	mgr := NewCheckpointManager(dir, 0)

	id, err := mgr.Save("job-1", map[string]string{"offset": "10"}, 0.5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ck, err := mgr.Restore(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ck.Operation != "job-1" || ck.Progress != 0.5 {
		t.Errorf("unexpected checkpoint: %+v", ck)
	}
	if ck.State["offset"] != "10" {
		t.Errorf("expected state offset=10, got %v", ck.State)
	}
}

func TestCheckpointRestoreMissing(t *testing.T) {
	dir := t.TempDir()
	mgr := NewCheckpointManager(dir, 0)

	_, err := mgr.Restore("does-not-exist")
	if err == nil {
		t.Fatal("expected NotFound error")
	}
}

func TestCheckpointRetentionTrims(t *testing.T) {
	dir := t.TempDir()
	clock := clockz.NewFakeClock()
	mgr := NewCheckpointManager(dir, 2).WithClock(clock)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := mgr.Save("job-retain", nil, float64(i)/5, nil)
		if err != nil {
			t.Fatalf("unexpected error on save %d: %v", i, err)
		}
		ids = append(ids, id)
		clock.Advance(time.Millisecond)
	}

	all, err := mgr.List("job-retain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected retention to trim to 2, got %d", len(all))
	}
	// The two survivors must be the most recent two saves.
	if all[0].ID != ids[4] || all[1].ID != ids[3] {
		t.Errorf("expected the newest two checkpoints to survive, got %v", []string{all[0].ID, all[1].ID})
	}
}

func TestCheckpointGetLatest(t *testing.T) {
	dir := t.TempDir()
	clock := clockz.NewFakeClock()
	mgr := NewCheckpointManager(dir, 0).WithClock(clock)

	_, err := mgr.Save("job-2", nil, 0.1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(time.Second)
	latestID, err := mgr.Save("job-2", nil, 0.9, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	latest, err := mgr.GetLatestCheckpoint("job-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.ID != latestID {
		t.Errorf("expected latest checkpoint to be %s, got %s", latestID, latest.ID)
	}
}

func TestCheckpointStats(t *testing.T) {
	dir := t.TempDir()
	mgr := NewCheckpointManager(dir, 0)

	_, _ = mgr.Save("job-3", nil, 0.2, nil)
	_, _ = mgr.Save("job-3", nil, 0.8, nil)

	stats, err := mgr.Stats("job-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Count != 2 {
		t.Errorf("expected count 2, got %d", stats.Count)
	}
	if stats.MaxProgress != 0.8 {
		t.Errorf("expected max progress 0.8, got %f", stats.MaxProgress)
	}
}

func TestAutoCheckpointRespectsInterval(t *testing.T) {
	dir := t.TempDir()
	clock := clockz.NewFakeClock()
	mgr := NewCheckpointManager(dir, 0).WithClock(clock)
	auto := NewAutoCheckpoint(mgr, "job-auto", time.Second).WithClock(clock)

	saved, err := auto.MaybeCheckpoint(nil, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !saved {
		t.Error("expected first checkpoint to save")
	}

	saved, err = auto.MaybeCheckpoint(nil, 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved {
		t.Error("expected second checkpoint within interval to be skipped")
	}

	clock.Advance(2 * time.Second)
	saved, err = auto.MaybeCheckpoint(nil, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !saved {
		t.Error("expected checkpoint after interval elapsed to save")
	}

	stats, err := mgr.Stats("job-auto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Count != 2 {
		t.Errorf("expected 2 saved checkpoints, got %d", stats.Count)
	}
}

func TestAutoCheckpointForceAlwaysSaves(t *testing.T) {
	dir := t.TempDir()
	mgr := NewCheckpointManager(dir, 0)
	auto := NewAutoCheckpoint(mgr, "job-force", time.Hour)

	if err := auto.ForceCheckpoint(nil, 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := auto.ForceCheckpoint(nil, 0.6); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := mgr.Stats("job-force")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Count != 2 {
		t.Errorf("expected 2 forced checkpoints, got %d", stats.Count)
	}
}
