package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultStatusInterval = 5 * time.Second

// Adapter invokes an engine binary as a subprocess and streams its
// stdout as a sequence of Events.
type Adapter struct {
	profile        Profile
	logger         *zap.Logger
	statusInterval time.Duration
}

// New builds an Adapter around the given Profile.
func New(profile Profile, logger *zap.Logger) *Adapter {
	return &Adapter{profile: profile, logger: logger, statusInterval: defaultStatusInterval}
}

// WithStatusInterval overrides the default progress-ticker interval.
func (a *Adapter) WithStatusInterval(d time.Duration) *Adapter {
	a.statusInterval = d
	return a
}

// Stream spawns the engine binary and returns a channel of Events. The
// channel is closed once a terminal event (DONE or ERROR) has been sent,
// or the process exits. onStatus, if non-nil, is called periodically
// while the process is still running.
func (a *Adapter) Stream(ctx context.Context, prompt, model, systemPrompt string, onStatus func(string)) (<-chan Event, error) {
	argv := a.profile.buildArgv(prompt, model, systemPrompt)
	cmd := exec.Command(a.profile.CLIPath, argv...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine: stdout pipe for %s: %w", a.profile.CLIPath, err)
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf
	cmd.Stdin = nil

	prepareCommandForTermination(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("engine: start %s: %w", a.profile.CLIPath, err)
	}

	events := make(chan Event, 16)
	go a.streamLoop(ctx, cmd, stdout, &stderrBuf, events, onStatus)
	return events, nil
}

func (a *Adapter) streamLoop(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, stderrBuf *bytes.Buffer, events chan<- Event, onStatus func(string)) {
	defer close(events)

	lines := make(chan string)
	waitCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
		// Wait closes the stdout pipe, so it runs only after every line
		// has been read.
		waitCh <- cmd.Wait()
	}()

	interval := a.statusInterval
	if interval <= 0 {
		interval = defaultStatusInterval
	}
	var tickerC <-chan time.Time
	if onStatus != nil {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tickerC = ticker.C
	}

	eventCount := 0
	for {
		select {
		case <-ctx.Done():
			_ = terminateProcessTree(cmd)
			drainLines(lines)
			<-waitCh
			events <- Event{Kind: KindError, Message: "engine invocation cancelled: " + ctx.Err().Error()}
			return

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			eventCount++
			ev := parseLine(line)
			events <- ev
			if ev.IsDone() || ev.IsError() {
				_ = terminateProcessTree(cmd)
				drainLines(lines)
				<-waitCh
				return
			}

		case err := <-waitCh:
			drainLines(lines)
			if err != nil {
				if tail := strings.TrimSpace(stderrBuf.String()); tail != "" {
					events <- Event{Kind: KindError, Message: tail}
				} else {
					events <- Event{Kind: KindError, Message: "engine exited: " + err.Error()}
				}
				return
			}
			if eventCount == 0 {
				events <- Event{Kind: KindError, Message: "no response from engine"}
				return
			}
			events <- Event{Kind: KindDone, StopReason: "end_turn"}
			return

		case <-tickerC:
			onStatus("running")
		}
	}
}

// drainLines reads lines to completion so the stdout-scanning goroutine
// (blocked mid-send on this unbuffered channel) can always exit once the
// process has been killed or has exited and stdout reaches EOF, instead of
// leaking if nothing else ever receives from lines again.
func drainLines(lines chan string) {
	if lines == nil {
		return
	}
	for range lines {
	}
}

// Generate runs Stream to completion and collects every event emitted,
// including the terminal DONE or ERROR event.
func (a *Adapter) Generate(ctx context.Context, prompt, model, systemPrompt string, onStatus func(string)) ([]Event, error) {
	ch, err := a.Stream(ctx, prompt, model, systemPrompt, onStatus)
	if err != nil {
		return nil, err
	}
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out, nil
}
