package execx

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a scripted Runner for tests. Handler decides the outcome of each
// command; commands are recorded in order.
type Fake struct {
	mu sync.Mutex

	// Handler returns the result for a command; nil means exit 0, no output.
	Handler func(cmd Command) (Result, error)
	// Missing lists executables LookPath should report as absent.
	Missing map[string]bool

	calls []Command
}

func (f *Fake) Run(_ context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	handler := f.Handler
	f.mu.Unlock()

	if handler == nil {
		return Result{}, nil
	}
	return handler(cmd)
}

func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Missing[name] {
		return "", fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}
	return "/usr/bin/" + name, nil
}

// Calls returns a copy of the recorded commands.
func (f *Fake) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}
