package pyferris

import "testing"

func TestConfigWorkerCount(t *testing.T) {
	original := GetWorkerCount()
	defer SetWorkerCount(original)

	SetWorkerCount(7)
	if got := GetWorkerCount(); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}

	SetWorkerCount(0) // ignored
	if got := GetWorkerCount(); got != 7 {
		t.Errorf("expected non-positive SetWorkerCount to be ignored, got %d", got)
	}
}

func TestConfigChunkSize(t *testing.T) {
	SetChunkSize(42)
	if got := GetChunkSize(); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	SetChunkSize(-1) // ignored
	if got := GetChunkSize(); got != 42 {
		t.Errorf("expected non-positive SetChunkSize to be ignored, got %d", got)
	}
}
