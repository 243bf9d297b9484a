package export

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/toneget/toneget/internal/logger"
	"go.uber.org/zap"
)

const filenamePrefix = "tonal_workouts_"

// WrittenFile reports where the export landed. Size is bytes on disk;
// RawSize is the JSON size before compression (equal when uncompressed).
type WrittenFile struct {
	Path    string
	Size    int64
	RawSize int64
}

// Filename returns the timestamped export name, local time at second
// resolution. Same-second reruns are out of scope for collision
// avoidance.
func Filename(t time.Time, gzipped bool) string {
	name := filenamePrefix + t.Format("20060102_150405") + ".json"
	if gzipped {
		name += ".gz"
	}
	return name
}

// Write serializes the document compactly and lands exactly one file in
// dir. Bytes go to a temp file first and are renamed into place, so a
// failed run never leaves a partial export that looks complete.
func Write(doc Document, dir string, gzipped bool) (WrittenFile, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return WrittenFile{}, fmt.Errorf("failed to encode export: %w", err)
	}
	rawSize := int64(len(data))

	if gzipped {
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return WrittenFile{}, fmt.Errorf("failed to init gzip: %w", err)
		}
		if _, err := zw.Write(data); err != nil {
			return WrittenFile{}, fmt.Errorf("failed to compress export: %w", err)
		}
		if err := zw.Close(); err != nil {
			return WrittenFile{}, fmt.Errorf("failed to compress export: %w", err)
		}
		data = buf.Bytes()
	}

	path := filepath.Join(dir, Filename(time.Now(), gzipped))
	if err := writeAtomic(path, data); err != nil {
		return WrittenFile{}, err
	}

	logger.Info("export written",
		zap.String("path", path),
		zap.Int64("bytes", int64(len(data))))

	return WrittenFile{
		Path:    path,
		Size:    int64(len(data)),
		RawSize: rawSize,
	}, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".toneget-*")
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename has happened.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush export file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}
