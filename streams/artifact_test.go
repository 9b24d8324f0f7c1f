package streams

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProcessedFile)

	in := []Record{
		{ID: "1", UserLogin: "alice", GameName: "Chess", ViewerCount: 42},
		{ID: "2", UserLogin: "bob", GameName: UnknownGame, Tags: []string{"en", "chill"}},
	}
	in[0].SetStartedAt("2024-03-09T14:30:00Z")

	if err := WriteBatch(path, in); err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}

	// The temp file must not survive a successful write.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp artifact left behind: %v", err)
	}

	out, err := ReadBatch(path)
	if err != nil {
		t.Fatalf("ReadBatch() error = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("ReadBatch() returned %d records, want %d", len(out), len(in))
	}
	if out[0].ID != "1" || out[0].GameName != "Chess" {
		t.Errorf("record 0 = %+v, want id=1 game=Chess", out[0])
	}
	if out[0].HourOfDay == nil || *out[0].HourOfDay != 14 {
		t.Errorf("record 0 hour = %v, want 14", out[0].HourOfDay)
	}
	if !out[0].StartedAt.Equal(in[0].StartedAt) {
		t.Errorf("record 0 started_at = %v, want %v", out[0].StartedAt, in[0].StartedAt)
	}
	if len(out[1].Tags) != 2 {
		t.Errorf("record 1 tags = %v, want 2 entries", out[1].Tags)
	}
}

func TestReadBatchMissingFile(t *testing.T) {
	_, err := ReadBatch(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("ReadBatch() error = nil, want error for missing file")
	}
}
