package sosclient

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"Lifeline/internal/models"
	errs "Lifeline/pkg/errors"
	"Lifeline/pkg/logger"
	"Lifeline/pkg/scheduler"
	"Lifeline/pkg/websocket"
)

// Location is one device position sample.
type Location struct {
	Latitude  float64
	Longitude float64
}

// LocationProvider resolves the current device position.
type LocationProvider interface {
	Current(ctx context.Context) (Location, error)
}

// LocationFunc adapts a function to LocationProvider.
type LocationFunc func(ctx context.Context) (Location, error)

func (f LocationFunc) Current(ctx context.Context) (Location, error) { return f(ctx) }

// Recorder captures audio between Start and Stop.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() ([]byte, error)
}

// Emitter sends a named event to the server.
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// Session states.
type State int32

const (
	StateIdle State = iota
	StateAlerting
	StateStreaming
	StateEnded
)

// Config fixes the session's timer layout. The defaults match the shipped
// protocol: a location sample every 10s until 40s after start, and one voice
// clip recorded for the first 30s.
type Config struct {
	LocationInterval time.Duration
	LocationDeadline time.Duration
	VoiceDuration    time.Duration
	AlertText        string
}

func DefaultConfig() Config {
	return Config{
		LocationInterval: 10 * time.Second,
		LocationDeadline: 40 * time.Second,
		VoiceDuration:    30 * time.Second,
		AlertText:        models.AlertText,
	}
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.LocationInterval <= 0 {
		c.LocationInterval = def.LocationInterval
	}
	if c.LocationDeadline <= 0 {
		c.LocationDeadline = def.LocationDeadline
	}
	if c.VoiceDuration <= 0 {
		c.VoiceDuration = def.VoiceDuration
	}
	if c.AlertText == "" {
		c.AlertText = def.AlertText
	}
}

// Session drives one user-initiated SOS: an alert burst, a repeating
// live-location stream, and a concurrent voice capture, all emitted over one
// connection. The session is ephemeral and never persisted; the server only
// sees the discrete events.
//
// There is deliberately no mutual exclusion between sessions: calling
// Trigger again while timers are still running starts a second independent
// timer set. Stop exists as a cancellation handle but the protocol itself
// never invokes it; timers always run out their fixed deadlines.
type Session struct {
	userID     string
	receiverID string
	emitter    Emitter
	location   LocationProvider
	recorder   Recorder
	cfg        Config

	state   atomic.Int32
	current atomic.Pointer[run]
}

// run is the timer state of a single trigger.
type run struct {
	sched     *scheduler.Scheduler
	startLoc  Location
	startedAt time.Time

	mu        sync.Mutex
	locHandle *scheduler.Handle
	samples   int
	locDone   bool
	voiceDone bool
	done      chan struct{}
}

func NewSession(userID, receiverID string, emitter Emitter, location LocationProvider, recorder Recorder, cfg Config) *Session {
	cfg.fillDefaults()
	return &Session{
		userID:     userID,
		receiverID: receiverID,
		emitter:    emitter,
		location:   location,
		recorder:   recorder,
		cfg:        cfg,
	}
}

// State returns the session state of the most recent trigger.
func (s *Session) State() State { return State(s.state.Load()) }

// Done reports completion of the most recent trigger: closed once both the
// location deadline and the voice timer have elapsed. Nil before any trigger.
func (s *Session) Done() <-chan struct{} {
	if r := s.current.Load(); r != nil {
		return r.done
	}
	return nil
}

// Trigger starts the SOS. Location or microphone acquisition failure aborts
// the whole trigger before any event is emitted and surfaces only locally.
func (s *Session) Trigger(ctx context.Context) error {
	pos, err := s.location.Current(ctx)
	if err != nil {
		return errs.Acquisition("location", err)
	}
	if err := s.recorder.Start(ctx); err != nil {
		return errs.Acquisition("microphone", err)
	}

	r := &run{
		sched:     scheduler.New(),
		startLoc:  pos,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	s.current.Store(r)

	s.state.Store(int32(StateAlerting))
	err = s.emitter.Emit(websocket.EventSOSStart, websocket.SOSStartPayload{
		UserID:     s.userID,
		ReceiverID: s.receiverID,
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		Timestamp:  r.startedAt.UnixMilli(),
		Text:       s.cfg.AlertText,
	})
	if err != nil {
		logger.Warn("sos alert emit failed", zap.Error(err))
	}
	s.state.Store(int32(StateStreaming))

	// The scheduler owns the three timer tracks: the repeating location
	// sampler, its backstop deadline, and the one-shot recording stop. The
	// sampler counts its own emissions and stops after the boundary tick, so
	// the deadline-coincident sample is never lost to timer ordering.
	total := int(s.cfg.LocationDeadline / s.cfg.LocationInterval)
	if total < 1 {
		total = 1
	}
	handle := r.sched.Every(s.cfg.LocationInterval, scheduler.FuncJob(func(ctx context.Context) {
		s.sampleLocation(ctx)
		r.mu.Lock()
		r.samples++
		finished := r.samples >= total
		h := r.locHandle
		r.mu.Unlock()
		if finished {
			if h != nil {
				h.Stop()
			}
			logger.Info("stopped live location updates")
			s.markDone(r, &r.locDone)
		}
	}))
	r.mu.Lock()
	r.locHandle = handle
	r.mu.Unlock()

	// backstop in case sampling falls behind the deadline
	r.sched.OnceAfter(s.cfg.LocationDeadline+s.cfg.LocationInterval, scheduler.FuncJob(func(ctx context.Context) {
		r.mu.Lock()
		h := r.locHandle
		r.mu.Unlock()
		if h != nil {
			h.Stop()
		}
		s.markDone(r, &r.locDone)
	}))
	r.sched.OnceAfter(s.cfg.VoiceDuration, scheduler.FuncJob(func(ctx context.Context) {
		s.finishVoice(r)
		s.markDone(r, &r.voiceDone)
	}))

	return nil
}

// Stop is the cancellation handle for the most recent trigger. Kept for
// callers that tear the whole client down; the protocol never calls it.
func (s *Session) Stop() {
	if r := s.current.Load(); r != nil {
		r.sched.Stop()
	}
}

func (s *Session) sampleLocation(ctx context.Context) {
	pos, err := s.location.Current(ctx)
	if err != nil {
		logger.Warn("live location sample failed", zap.Error(err))
		return
	}
	err = s.emitter.Emit(websocket.EventSendLiveLocation, websocket.LiveLocationPayload{
		UserID:     s.userID,
		ReceiverID: s.receiverID,
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		Timestamp:  time.Now().UnixMilli(),
	})
	if err != nil {
		logger.Warn("live location emit failed", zap.Error(err))
	}
}

// finishVoice stops the recorder and emits the clip with the coordinates
// captured at session start, not re-sampled.
func (s *Session) finishVoice(r *run) {
	clip, err := s.recorder.Stop()
	if err != nil {
		logger.Warn("voice capture failed", zap.Error(err))
		return
	}
	if len(clip) == 0 {
		logger.Warn("voice capture produced no audio")
		return
	}
	err = s.emitter.Emit(websocket.EventSOSVoice, websocket.SOSVoicePayload{
		UserID:     s.userID,
		ReceiverID: s.receiverID,
		AudioBlob:  clip,
		Latitude:   r.startLoc.Latitude,
		Longitude:  r.startLoc.Longitude,
	})
	if err != nil {
		logger.Warn("voice emit failed", zap.Error(err))
	}
}

// markDone flags one of the two timer tracks finished; once both are, the
// run's scheduler is released and the session ends. No event marks the end
// for the receiver; silence is the only signal.
// Idempotent per flag: the sampler and its backstop can both finish the
// location track.
func (s *Session) markDone(r *run, flag *bool) {
	r.mu.Lock()
	if *flag {
		r.mu.Unlock()
		return
	}
	*flag = true
	ended := r.locDone && r.voiceDone
	r.mu.Unlock()

	if ended {
		r.sched.Stop()
		s.state.Store(int32(StateEnded))
		close(r.done)
	}
}
