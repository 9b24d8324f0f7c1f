package streams

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ProcessedFile is the conventional processed batch artifact name under DATA_DIR.
const ProcessedFile = "processed/streams_processed.json"

// WriteBatch persists a processed record batch as a JSON artifact, creating
// parent directories as needed. The write goes through a temp file and rename
// so readers never observe a partially written batch.
func WriteBatch(path string, batch []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close artifact: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadBatch loads a processed record batch artifact.
func ReadBatch(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	var batch []Record
	if err := json.NewDecoder(f).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return batch, nil
}
