package audit

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FSWriter persists raw gateway payloads per order so failed or disputed
// payments can be reconciled manually. Files are never overwritten; each
// event gets a timestamped name under the order's directory.
type FSWriter struct {
	Dir string
}

func NewFSWriter(dir string) *FSWriter {
	return &FSWriter{Dir: dir}
}

func (w *FSWriter) Write(orderID, kind string, payload []byte) error {
	dir := filepath.Join(w.Dir, orderID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := kind + "_" + strconv.FormatInt(time.Now().UnixNano(), 10) + ".json"
	return os.WriteFile(filepath.Join(dir, name), payload, 0o644)
}
