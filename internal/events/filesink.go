package events

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// FileSink appends events as JSON lines. Suitable for local dev where a
// relayer tails the journal; emission errors are logged, never propagated
// back into the ledger call.
type FileSink struct {
	path string
	mu   sync.Mutex
}

func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileSink{path: path}, nil
}

func (f *FileSink) Emit(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	blob, err := json.Marshal(ev)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		log.Printf("event journal open error: %v", err)
		return
	}
	defer file.Close()

	if _, err := file.Write(append(blob, '\n')); err != nil {
		log.Printf("event journal write error: %v", err)
	}
}
