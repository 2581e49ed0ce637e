package voice

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ConsoleRecognizer treats each non-empty input line as a final transcript.
// It lets an officer terminal drive a Session without a microphone.
type ConsoleRecognizer struct {
	in    io.Reader
	once  sync.Once
	lines chan string
}

func NewConsoleRecognizer(in io.Reader) *ConsoleRecognizer {
	return &ConsoleRecognizer{in: in, lines: make(chan string)}
}

func (c *ConsoleRecognizer) Start(lang string) (Recognition, error) {
	c.once.Do(func() { go c.read() })

	r := &consoleRecognition{
		results: make(chan Result),
		stop:    make(chan struct{}),
	}
	go r.run(c.lines)
	return r, nil
}

func (c *ConsoleRecognizer) read() {
	defer close(c.lines)
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			c.lines <- line
		}
	}
}

type consoleRecognition struct {
	results  chan Result
	stop     chan struct{}
	stopOnce sync.Once

	mu  sync.Mutex
	err error
}

func (r *consoleRecognition) run(lines <-chan string) {
	defer close(r.results)
	for {
		select {
		case <-r.stop:
			return
		case line, ok := <-lines:
			if !ok {
				r.end(fmt.Errorf("console input closed: %w", ErrNotAllowed))
				return
			}
			select {
			case r.results <- Result{Transcript: line, Final: true}:
			case <-r.stop:
				return
			}
		}
	}
}

func (r *consoleRecognition) end(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *consoleRecognition) Results() <-chan Result { return r.results }

func (r *consoleRecognition) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *consoleRecognition) Stop()  { r.end(nil) }
func (r *consoleRecognition) Abort() { r.end(ErrAborted) }

// ConsoleSynthesizer prints utterances instead of speaking them.
type ConsoleSynthesizer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleSynthesizer(out io.Writer) *ConsoleSynthesizer {
	return &ConsoleSynthesizer{out: out}
}

func (c *ConsoleSynthesizer) Speak(text, lang string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] %s\n", lang, text)
	return err
}

// Cancel is a no-op; printed lines cannot be taken back.
func (c *ConsoleSynthesizer) Cancel() {}
