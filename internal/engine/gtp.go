// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/baduk-analyzer/internal/board"
	"github.com/pdiddy/baduk-analyzer/pkg/types"
)

// analyzeInterval is the kata-analyze report interval in centiseconds.
const analyzeInterval = 10

// GTPEngine drives a persistent GTP subprocess (KataGo or compatible).
// The process starts lazily on the first Analyze and is reused until
// Close. One analysis runs at a time.
type GTPEngine struct {
	cfg types.EngineConfig
	log *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	session *gtpSession
	model   string
}

// NewGTP returns an engine for the configured command. The subprocess
// is not started until the first analysis.
func NewGTP(cfg types.EngineConfig, log *slog.Logger) (*GTPEngine, error) {
	if !cfg.Enabled || cfg.Command == "" {
		return nil, ErrUnavailable
	}
	if log == nil {
		log = slog.Default()
	}
	return &GTPEngine{cfg: cfg, log: log}, nil
}

// ModelName reports the model the engine announced at startup. Empty
// until the first successful start.
func (e *GTPEngine) ModelName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// start launches the subprocess and queries its model name. Must hold mu.
func (e *GTPEngine) start() error {
	if e.session != nil && e.cmd.ProcessState == nil {
		return nil
	}

	args := []string{"gtp"}
	if e.cfg.ModelPath != "" {
		args = append(args, "-model", e.cfg.ModelPath)
	}
	if e.cfg.ConfigPath != "" {
		args = append(args, "-config", e.cfg.ConfigPath)
	}

	cmd := exec.Command(e.cfg.Command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &StartupError{Command: e.cfg.Command, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &StartupError{Command: e.cfg.Command, Err: err}
	}
	// stderr intentionally discarded: engine chatter would deadlock a
	// full pipe buffer.
	if err := cmd.Start(); err != nil {
		return &StartupError{Command: e.cfg.Command, Err: err}
	}

	e.cmd = cmd
	e.session = newGTPSession(stdin, stdout)

	if model, err := e.session.command("name"); err == nil {
		e.model = strings.TrimSpace(model)
	} else {
		e.model = "unknown"
	}
	e.log.Info("engine started", "command", e.cfg.Command, "model", e.model)
	return nil
}

// Analyze sets up the position and runs kata-analyze until the visit
// budget is reached or ctx ends. On interruption the candidates
// collected so far come back with Complete=false alongside ctx's error.
func (e *GTPEngine) Analyze(ctx context.Context, b *board.Board, req Request) (*types.AnalysisResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.start(); err != nil {
		return nil, err
	}
	for _, cmd := range b.GTPSetupCommands() {
		if _, err := e.session.command(cmd); err != nil {
			return nil, fmt.Errorf("setting up position: %w", err)
		}
	}

	started := time.Now()
	candidates, complete, runErr := e.session.analyze(ctx, b.NextPlayer, req.Visits)
	elapsed := time.Since(started).Seconds()

	if len(candidates) == 0 && runErr == nil {
		// kata-analyze produced nothing; fall back to a bare genmove.
		candidates, runErr = e.genmoveFallback(b, req.Visits)
		complete = runErr == nil
	}
	if len(candidates) == 0 {
		if runErr != nil {
			return nil, runErr
		}
		return nil, &ProcessError{Err: fmt.Errorf("engine returned no candidates")}
	}

	if req.TopMoves > 0 && len(candidates) > req.TopMoves {
		candidates = candidates[:req.TopMoves]
	}

	result := &types.AnalysisResult{
		BoardSize:      b.Size,
		Komi:           b.Komi,
		MovesSequence:  b.MovesSequence(),
		TopMoves:       candidates,
		EngineVisits:   req.Visits,
		ModelName:      e.model,
		Source:         types.SourceLiveEngine,
		Complete:       complete,
		ComputeSeconds: elapsed,
		CreatedAt:      time.Now().UTC(),
	}
	return result, runErr
}

func (e *GTPEngine) genmoveFallback(b *board.Board, visits int) ([]types.MoveCandidate, error) {
	resp, err := e.session.command(fmt.Sprintf("genmove %s", b.NextPlayer))
	if err != nil {
		return nil, err
	}
	// genmove plays the move; undo keeps the engine position in sync.
	if _, err := e.session.command("undo"); err != nil {
		e.log.Warn("undo after genmove failed", "err", err)
	}
	move := strings.ToUpper(strings.TrimSpace(resp))
	if move == "" || move == "PASS" || move == "RESIGN" {
		return nil, nil
	}
	return []types.MoveCandidate{{Move: move, Winrate: 0.5, Visits: visits}}, nil
}

// Close sends quit and waits briefly before killing the process.
func (e *GTPEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	e.session.quit()
	e.session = nil

	done := make(chan error, 1)
	go func() { done <- e.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		e.cmd.Process.Kill()
		<-done
	}
	e.cmd = nil
	return nil
}

// gtpSession is the line-level GTP transport, separated from process
// management so it can be exercised over plain pipes.
type gtpSession struct {
	in    io.WriteCloser
	lines chan string
	done  chan struct{}
}

func newGTPSession(in io.WriteCloser, out io.Reader) *gtpSession {
	s := &gtpSession{
		in:    in,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		scanner := bufio.NewScanner(out)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			s.lines <- scanner.Text()
		}
		close(s.lines)
	}()
	return s
}

func (s *gtpSession) send(cmd string) error {
	if _, err := io.WriteString(s.in, cmd+"\n"); err != nil {
		return &ProcessError{Err: err}
	}
	return nil
}

// command sends one GTP command and collects the response, which ends
// at the first empty line.
func (s *gtpSession) command(cmd string) (string, error) {
	if err := s.send(cmd); err != nil {
		return "", err
	}
	var parts []string
	for {
		line, ok := <-s.lines
		if !ok {
			return "", &ProcessError{Err: fmt.Errorf("engine terminated during %q", cmd)}
		}
		if line == "" {
			break
		}
		parts = append(parts, line)
	}
	resp := strings.Join(parts, "\n")
	if strings.HasPrefix(resp, "?") {
		return "", &CommandError{Cmd: cmd, Msg: strings.TrimSpace(strings.TrimPrefix(resp, "?"))}
	}
	resp = strings.TrimPrefix(resp, "=")
	return strings.TrimSpace(resp), nil
}

// analyze streams kata-analyze reports until the leading candidate has
// the requested visits or ctx ends, then stops the search and drains
// the remaining output. Returns the freshest candidate list, whether
// the budget was reached, and the context error on interruption.
func (s *gtpSession) analyze(ctx context.Context, player board.Color, visits int) ([]types.MoveCandidate, bool, error) {
	if err := s.send(fmt.Sprintf("kata-analyze %s interval %d", player, analyzeInterval)); err != nil {
		return nil, false, err
	}

	var latest []types.MoveCandidate
	complete := false
	var runErr error

loop:
	for {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		case line, ok := <-s.lines:
			if !ok {
				return latest, false, &ProcessError{Err: fmt.Errorf("engine terminated during analysis")}
			}
			if !strings.HasPrefix(line, "info ") {
				continue
			}
			latest = parseAnalyzeLine(line)
			if len(latest) > 0 && latest[0].Visits >= visits {
				complete = true
				break loop
			}
		}
	}

	// End the search and drain until the terminating response line.
	if err := s.send("stop"); err == nil {
		deadline := time.After(2 * time.Second)
	drain:
		for {
			select {
			case line, ok := <-s.lines:
				if !ok {
					break drain
				}
				if strings.HasPrefix(line, "info ") {
					latest = parseAnalyzeLine(line)
				}
				if line == "" || strings.HasPrefix(line, "=") {
					break drain
				}
			case <-deadline:
				break drain
			}
		}
	}

	return latest, complete, runErr
}

func (s *gtpSession) quit() {
	s.send("quit")
	s.in.Close()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
	}
}

// parseAnalyzeLine decodes one kata-analyze report:
//
//	info move Q3 visits 45 winrate 0.52 scoreLead 0.31 order 0 pv Q3 R4 ...
//
// Candidates come back sorted by descending visits. Malformed segments
// are dropped.
func parseAnalyzeLine(line string) []types.MoveCandidate {
	var out []types.MoveCandidate
	for _, seg := range strings.Split(line, "info move ")[1:] {
		fields := strings.Fields(seg)
		if len(fields) == 0 {
			continue
		}
		c := types.MoveCandidate{Move: strings.ToUpper(fields[0]), Winrate: -1}
		for i := 1; i < len(fields)-1; i++ {
			switch fields[i] {
			case "visits":
				if n, err := strconv.Atoi(fields[i+1]); err == nil {
					c.Visits = n
				}
			case "winrate":
				if f, err := strconv.ParseFloat(fields[i+1], 64); err == nil {
					c.Winrate = f
				}
			case "scoreLead":
				if f, err := strconv.ParseFloat(fields[i+1], 64); err == nil {
					c.ScoreLead = f
				}
			case "pv":
				i = len(fields) // principal variation runs to end of segment
			}
		}
		if c.Visits == 0 || c.Winrate < 0 || c.Winrate > 1 {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Visits > out[j].Visits })
	return out
}
