package sosclient

import (
	"context"
	"sync"

	errs "Lifeline/pkg/errors"
)

// ClipRecorder is a Recorder that plays back a pre-loaded clip, used by
// drills and tests where no real microphone exists. A nil clip simulates a
// denied microphone permission.
type ClipRecorder struct {
	Clip []byte

	mu        sync.Mutex
	recording bool
}

func (r *ClipRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Clip == nil {
		return errs.New("microphone permission denied")
	}
	r.recording = true
	return nil
}

func (r *ClipRecorder) Stop() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return nil, errs.New("recorder not started")
	}
	r.recording = false
	return r.Clip, nil
}
