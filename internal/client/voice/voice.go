// Package voice abstracts speech synthesis and recognition behind optional handles.
package voice

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// Synthesizer speaks text and returns when playback finishes or ctx is cancelled.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Recognizer streams transcripts until ctx is cancelled; the channel is then closed.
type Recognizer interface {
	Listen(ctx context.Context) (<-chan string, error)
}

// Capabilities reports which speech features this platform offers.
type Capabilities interface {
	Synthesizer() (Synthesizer, bool)
	Recognizer() (Recognizer, bool)
}

// Static is a Capabilities with fixed handles; nil means unavailable.
type Static struct {
	Speech   Synthesizer
	Listener Recognizer
}

func (s Static) Synthesizer() (Synthesizer, bool) { return s.Speech, s.Speech != nil }
func (s Static) Recognizer() (Recognizer, bool)   { return s.Listener, s.Listener != nil }

// None has no speech support.
var None Capabilities = Static{}

// CommandSynthesizer runs an external TTS binary with the text as last argument.
type CommandSynthesizer struct {
	Path string
	Args []string
}

func (c CommandSynthesizer) Speak(ctx context.Context, text string) error {
	args := append(append([]string{}, c.Args...), text)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return eris.Wrapf(err, "speak via %s", c.Path)
	}
	return nil
}

// DetectSynthesizer looks for say (macOS), espeak-ng or espeak on PATH.
func DetectSynthesizer() (Synthesizer, bool) {
	for _, name := range []string{"say", "espeak-ng", "espeak"} {
		if p, err := exec.LookPath(name); err == nil {
			return CommandSynthesizer{Path: p}, true
		}
	}
	return nil, false
}

// ReaderRecognizer reads newline-separated transcripts, e.g. from a FIFO fed by
// an external speech-to-text process.
type ReaderRecognizer struct {
	Open func() (io.ReadCloser, error)
}

// FileRecognizer reads transcripts from a file or named pipe.
func FileRecognizer(path string) ReaderRecognizer {
	return ReaderRecognizer{Open: func() (io.ReadCloser, error) { return os.Open(path) }}
}

func (r ReaderRecognizer) Listen(ctx context.Context) (<-chan string, error) {
	rc, err := r.Open()
	if err != nil {
		return nil, eris.Wrap(err, "open transcript source")
	}
	out := make(chan string)
	go func() {
		<-ctx.Done()
		rc.Close()
	}()
	go func() {
		defer close(out)
		sc := bufio.NewScanner(rc)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Detect builds Capabilities for this machine. An empty transcripts path
// disables recognition.
func Detect(speech bool, transcripts string) Capabilities {
	var s Static
	if speech {
		if synth, ok := DetectSynthesizer(); ok {
			s.Speech = synth
		}
	}
	if transcripts != "" {
		s.Listener = FileRecognizer(transcripts)
	}
	return s
}
