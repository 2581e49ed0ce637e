package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"krl-safety-backend/internal/events"
	"krl-safety-backend/internal/lifecycle"
	"krl-safety-backend/internal/model"
)

const (
	DefaultRestartDelay = 250 * time.Millisecond

	// StartupMessage is spoken when the officer console comes up.
	StartupMessage = "Sistem voice notification aktif."
)

// State is a snapshot of a session.
type State struct {
	Enabled      bool
	Listening    bool
	Visible      bool
	ActiveCaseID string
	Transcript   string
}

// Options configures a Session. Zero values get defaults.
type Options struct {
	Lang         string
	RestartDelay time.Duration
	// OnTranscript receives every interim and final transcript.
	OnTranscript func(text string, final bool)
	Logger       *zap.Logger
}

// Session is the officer-side voice loop. One goroutine owns all state;
// exported methods post work to it and are safe for concurrent use.
type Session struct {
	rec   Recognizer
	synth Synthesizer
	disp  Dispatcher
	opts  Options
	log   *zap.Logger

	cmds     chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  sync.Once
	ctx      context.Context

	// Owned by the loop goroutine.
	state       State
	recognition Recognition
	results     <-chan Result
	restart     *time.Timer
	restartC    <-chan time.Time
}

func NewSession(rec Recognizer, synth Synthesizer, disp Dispatcher, opts Options) *Session {
	if opts.Lang == "" {
		opts.Lang = DefaultLang
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		rec:   rec,
		synth: synth,
		disp:  disp,
		opts:  opts,
		log:   log.Named("voice"),
		cmds:  make(chan func()),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		state: State{Visible: true},
		ctx:   context.Background(),
	}
}

// Start runs the session loop until ctx is done or Stop is called.
func (s *Session) Start(ctx context.Context) {
	s.started.Do(func() {
		s.ctx = ctx
		go s.loop(ctx)
	})
}

// Stop halts recognition and cancels pending speech. Safe to call repeatedly.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	s.started.Do(func() { close(s.done) })
	<-s.done
}

// Dispose is an alias of Stop.
func (s *Session) Dispose() { s.Stop() }

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Enable opts in and starts listening in lang (empty keeps the current locale).
func (s *Session) Enable(lang string) {
	s.post(func() {
		if lang != "" {
			s.opts.Lang = lang
		}
		s.state.Enabled = true
		if s.state.Visible {
			s.startRecognition()
		}
	})
}

// Disable opts out and stops listening.
func (s *Session) Disable() {
	s.post(func() {
		s.state.Enabled = false
		s.stopRecognition()
	})
}

// SetVisible pauses listening while hidden and resumes when visible again.
func (s *Session) SetVisible(visible bool) {
	s.post(func() {
		s.state.Visible = visible
		if !s.state.Enabled {
			return
		}
		if visible {
			s.startRecognition()
		} else {
			s.stopRecognition()
		}
	})
}

// SetActiveCase sets the case final transcripts apply to. Empty clears it.
func (s *Session) SetActiveCase(id string) {
	s.post(func() { s.state.ActiveCaseID = id })
}

// Speak cancels any utterance in flight and speaks text.
func (s *Session) Speak(text string) {
	s.post(func() { s.speak(text) })
}

// Announce speaks the cases of a batch and makes the most recent one active.
// Batches arrive newest first; since each utterance replaces the previous
// one, the newest is spoken last.
func (s *Session) Announce(batch events.Batch) {
	if len(batch.Cases) == 0 {
		return
	}
	s.post(func() {
		for i := len(batch.Cases) - 1; i >= 0; i-- {
			s.speak(AnnouncementFor(batch.Cases[i]))
		}
		s.state.ActiveCaseID = batch.Cases[0].ID
	})
}

// State returns a snapshot. After Stop it returns the zero State.
func (s *Session) State() State {
	reply := make(chan State, 1)
	if !s.post(func() { reply <- s.state }) {
		return State{}
	}
	select {
	case st := <-reply:
		return st
	case <-s.done:
		return State{}
	}
}

// AnnouncementFor renders the spoken alert for a new case.
func AnnouncementFor(ev events.CaseEvent) string {
	carriage := ev.CarriageName
	if carriage == "" {
		carriage = ev.CarriageID
	}
	if ev.CaseType == model.CaseTypeCrowding {
		return strings.TrimSpace(fmt.Sprintf("Peringatan kepadatan di gerbong %s. %s", carriage, ev.Description))
	}
	return fmt.Sprintf("Kasus baru di gerbong %s. Jenis kasus %s. Deskripsi: %s", carriage, ev.CaseType, ev.Name)
}

func (s *Session) post(fn func()) bool {
	select {
	case s.cmds <- fn:
		return true
	case <-s.quit:
		return false
	case <-s.done:
		return false
	}
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case fn := <-s.cmds:
			fn()
		case r, ok := <-s.results:
			if !ok {
				s.recognitionEnded()
				continue
			}
			s.handleResult(r)
		case <-s.restartC:
			s.restartC = nil
			s.restart = nil
			if s.state.Enabled && s.state.Visible {
				s.startRecognition()
			}
		}
	}
}

func (s *Session) shutdown() {
	s.state.Enabled = false
	s.cancelRestart()
	if s.recognition != nil {
		s.recognition.Abort()
		s.recognition = nil
		s.results = nil
	}
	s.state.Listening = false
	s.synth.Cancel()
}

func (s *Session) startRecognition() {
	if s.recognition != nil {
		return
	}
	s.cancelRestart()

	r, err := s.rec.Start(s.opts.Lang)
	if err != nil {
		if errors.Is(err, ErrNotAllowed) {
			s.log.Warn("microphone access not allowed, disabling voice")
			s.state.Enabled = false
			return
		}
		s.log.Warn("failed to start recognition", zap.Error(err))
		s.scheduleRestart()
		return
	}
	s.recognition = r
	s.results = r.Results()
	s.state.Listening = true
}

func (s *Session) stopRecognition() {
	s.cancelRestart()
	if s.recognition == nil {
		return
	}
	r := s.recognition
	s.recognition = nil
	s.results = nil
	s.state.Listening = false
	r.Stop()
}

func (s *Session) recognitionEnded() {
	err := s.recognition.Err()
	s.recognition = nil
	s.results = nil
	s.state.Listening = false

	switch {
	case errors.Is(err, ErrNotAllowed):
		s.log.Warn("recognition not allowed, disabling voice")
		s.state.Enabled = false
		return
	case err == nil, errors.Is(err, ErrNoSpeech), errors.Is(err, ErrAborted):
		s.log.Debug("recognition ended", zap.Error(err))
	default:
		s.log.Warn("recognition error", zap.Error(err))
	}

	if s.state.Enabled && s.state.Visible {
		s.scheduleRestart()
	}
}

func (s *Session) scheduleRestart() {
	if s.restart != nil {
		return
	}
	s.restart = time.NewTimer(s.opts.RestartDelay)
	s.restartC = s.restart.C
}

func (s *Session) cancelRestart() {
	if s.restart != nil {
		s.restart.Stop()
	}
	s.restart = nil
	s.restartC = nil
}

func (s *Session) handleResult(r Result) {
	text := strings.TrimSpace(r.Transcript)
	s.state.Transcript = text
	if s.opts.OnTranscript != nil {
		s.opts.OnTranscript(text, r.Final)
	}
	if !r.Final || text == "" {
		return
	}

	caseID := s.state.ActiveCaseID
	if caseID == "" {
		s.log.Debug("final transcript without active case", zap.String("transcript", text))
		return
	}
	if lifecycle.ParseCommand(text) == lifecycle.CommandNone {
		s.log.Debug("final transcript without command", zap.String("transcript", text))
		return
	}

	go func() {
		msg, err := s.disp.Transition(s.ctx, caseID, text)
		if err != nil {
			s.log.Warn("voice command failed", zap.String("case_id", caseID), zap.Error(err))
			return
		}
		if msg != "" && msg != lifecycle.MessageNoCommand {
			s.Speak(msg)
		}
	}()
}

func (s *Session) speak(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.synth.Cancel()
	if err := s.synth.Speak(text, s.opts.Lang); err != nil {
		s.log.Warn("speech synthesis failed", zap.Error(err))
	}
}
