// SPDX-License-Identifier: Apache-2.0

// Package train records search trajectories the packer produces so a policy
// network can later be trained against them: one record per decision along
// the search engine's final chosen path, tagging the candidate packs it
// chose between and which one it committed to.
package train

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
)

// Sample is one labeled search decision: the state the engine was in, the
// packs it was choosing between, and which index it committed to (-1 for a
// pure scalarize move). Cost is the incremental cost AdvanceScalar/
// AdvancePack reported for the chosen move.
type Sample struct {
	ID           string    `json:"id"`
	FrontierKey  string    `json:"frontier_key"`
	CandidateIDs []string  `json:"candidate_ids"`
	Chosen       int       `json:"chosen"`
	Cost         float64   `json:"cost"`
	Value        float64   `json:"value"`
}

// Recorder persists Samples as they're produced. Implementations must be
// safe for concurrent use, since one Recorder may be shared by searches
// running on different goroutines.
type Recorder interface {
	Record(s Sample) error
	Close() error
}

// NopRecorder discards every sample. It's the default when no training data
// is being collected, so the packer's hot path never pays for recording.
type NopRecorder struct{}

func (NopRecorder) Record(Sample) error { return nil }
func (NopRecorder) Close() error        { return nil }

// FileRecorder appends Samples to a file as newline-delimited JSON, one
// object per line, so a training job can stream it without holding the
// whole run in memory.
type FileRecorder struct {
	mu sync.Mutex
	w  io.WriteCloser
	enc *json.Encoder
}

// NewFileRecorder opens (creating if needed) path for append and returns a
// Recorder writing to it.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "train: open %s", path)
	}
	return &FileRecorder{w: f, enc: json.NewEncoder(f)}, nil
}

func (r *FileRecorder) Record(s Sample) error {
	if s.ID == "" {
		s.ID = ksuid.New().String()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(s)
}

func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Close()
}
