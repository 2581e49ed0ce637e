package voice

import (
	"context"
	"errors"
)

// DefaultLang is the recognition and synthesis locale.
const DefaultLang = "id-ID"

// Recognition end reasons. ErrNotAllowed is fatal for the session; the
// others are recoverable.
var (
	ErrNotAllowed = errors.New("not-allowed")
	ErrNoSpeech   = errors.New("no-speech")
	ErrAborted    = errors.New("aborted")
)

// Result is one recognition result. Interim results are replaced by later
// ones; a final result is a complete utterance.
type Result struct {
	Transcript string
	Final      bool
}

// Recognition is a running continuous recognition. Results is closed when
// recognition ends, after which Err reports why (nil for a normal end).
// Stop and Abort must be safe to call more than once.
type Recognition interface {
	Results() <-chan Result
	Err() error
	Stop()
	Abort()
}

// Recognizer starts speech recognition sessions.
type Recognizer interface {
	Start(lang string) (Recognition, error)
}

// Synthesizer speaks text. Speak starts an utterance; Cancel drops any
// utterance still playing.
type Synthesizer interface {
	Speak(text, lang string) error
	Cancel()
}

// Dispatcher forwards a final transcript for a case and returns the message
// to speak back.
type Dispatcher interface {
	Transition(ctx context.Context, caseID, transcript string) (string, error)
}
