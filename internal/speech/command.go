package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandEngine is a FallbackEngine backed by a local TTS binary such as
// espeak-ng. The text is passed as the last argument, after "--" so it is
// never read as an option.
type CommandEngine struct {
	name string
	args []string
}

// NewCommandEngine parses a command line like "espeak-ng -v hi".
func NewCommandEngine(command string) (*CommandEngine, error) {
	name, args, err := splitCommand(command)
	if err != nil {
		return nil, err
	}
	return &CommandEngine{name: name, args: args}, nil
}

func (e *CommandEngine) Speak(ctx context.Context, text string) error {
	args := append(append([]string{}, e.args...), "--", text)
	out, err := exec.CommandContext(ctx, e.name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", e.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CommandPlayer is a Player that writes audio to a temp file and runs a
// player binary on it, e.g. "mpg123 -q" or "ffplay -nodisp -autoexit".
type CommandPlayer struct {
	name string
	args []string
}

func NewCommandPlayer(command string) (*CommandPlayer, error) {
	name, args, err := splitCommand(command)
	if err != nil {
		return nil, err
	}
	return &CommandPlayer{name: name, args: args}, nil
}

func (p *CommandPlayer) Play(ctx context.Context, audio []byte) error {
	f, err := os.CreateTemp("", "studybuddy-*.mp3")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(audio); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	args := append(append([]string{}, p.args...), f.Name())
	out, err := exec.CommandContext(ctx, p.name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", p.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func splitCommand(command string) (string, []string, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil, errors.New("empty command")
	}
	return fields[0], fields[1:], nil
}
