package persistence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// TranscriptEntry is one conversation message as written to the log.
type TranscriptEntry struct {
	WorldID string    `json:"world_id"`
	Seq     int       `json:"seq"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// TranscriptLog appends conversation messages to one zstd-compressed JSONL
// file per world.
type TranscriptLog struct {
	dir string

	mu      sync.Mutex
	worldID string
	seq     int
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewTranscriptLog writes under dir, creating it on first use.
func NewTranscriptLog(dir string) *TranscriptLog {
	return &TranscriptLog{dir: dir}
}

// Path returns the transcript file of a world.
func (l *TranscriptLog) Path(worldID string) string {
	return filepath.Join(l.dir, fmt.Sprintf("transcript-%s.jsonl.zst", worldID))
}

// Write appends one message, switching files when worldID changes.
func (l *TranscriptLog) Write(worldID, role, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if worldID != l.worldID || l.w == nil {
		if err := l.rotateLocked(worldID); err != nil {
			return err
		}
	}

	b, err := json.Marshal(TranscriptEntry{
		WorldID: worldID,
		Seq:     l.seq,
		Role:    role,
		Content: content,
		At:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	l.seq++
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	return l.w.Flush()
}

// Close flushes and closes the current file.
func (l *TranscriptLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *TranscriptLog) rotateLocked(worldID string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path(worldID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f = f
	l.enc = enc
	l.w = bufio.NewWriterSize(enc, 64*1024)
	l.worldID = worldID
	l.seq = 0
	return nil
}

func (l *TranscriptLog) closeLocked() error {
	var err error
	if l.w != nil {
		_ = l.w.Flush()
	}
	if l.enc != nil {
		err = l.enc.Close()
		l.enc = nil
	}
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	l.w = nil
	return err
}

// ReadTranscript decodes a transcript file written by TranscriptLog.
func ReadTranscript(path string) ([]TranscriptEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []TranscriptEntry
	jd := json.NewDecoder(dec)
	for {
		var e TranscriptEntry
		if err := jd.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, e)
	}
}
