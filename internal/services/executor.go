package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// Command describes one external tool invocation.
type Command struct {
	Binary string
	Args   []string
	// Dir is the working directory. Redundancy tooling depends on this being
	// the descriptor directory so only relative paths reach the tool.
	Dir string
	// OnOutput receives each line of combined stdout/stderr as it is produced.
	OnOutput func(string)
	// Timeout bounds this invocation only; zero means no limit.
	Timeout time.Duration
}

// Executor abstracts command execution for testability.
type Executor interface {
	// Run executes the command and returns its exit code. A non-zero exit is
	// not an error; err reports spawn or stream failures and cancellation.
	Run(ctx context.Context, cmd Command) (int, error)
}

// CommandExecutor runs commands via os/exec.
type CommandExecutor struct{}

func (CommandExecutor) Run(ctx context.Context, spec Command) (int, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...) //nolint:gosec
	cmd.Dir = spec.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return -1, Wrap(ErrToolUnavailable, "", "", fmt.Sprintf("binary %q not found", spec.Binary), err)
		}
		return -1, fmt.Errorf("start %s: %w", spec.Binary, err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if spec.OnOutput != nil {
				spec.OnOutput(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, Classify(ctxErr)
	}
	if scanErr != nil {
		return -1, fmt.Errorf("scan output: %w", scanErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("wait %s: %w", spec.Binary, waitErr)
	}
	return 0, nil
}
