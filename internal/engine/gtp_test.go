// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/baduk-analyzer/internal/board"
	"github.com/pdiddy/baduk-analyzer/pkg/types"
)

func TestParseAnalyzeLine(t *testing.T) {
	line := "info move Q3 visits 45 winrate 0.523445 scoreLead 0.312 prior 0.0892 order 0 pv Q3 R4 Q5 " +
		"info move R4 visits 88 winrate 0.518923 scoreLead -0.287 prior 0.0756 order 1 pv R4 Q3 R6"

	got := parseAnalyzeLine(line)
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2", len(got))
	}
	// Sorted by visits, most analyzed first.
	if got[0].Move != "R4" || got[0].Visits != 88 {
		t.Errorf("first candidate = %+v", got[0])
	}
	if got[0].ScoreLead != -0.287 {
		t.Errorf("score lead = %v", got[0].ScoreLead)
	}
	if got[1].Move != "Q3" || got[1].Winrate != 0.523445 {
		t.Errorf("second candidate = %+v", got[1])
	}
}

func TestParseAnalyzeLineDropsMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
		want int
	}{
		{"no fields", "info move ", 0},
		{"zero visits", "info move Q3 winrate 0.5", 0},
		{"winrate out of range", "info move Q3 visits 10 winrate 52.3", 0},
		{"one good one bad", "info move Q3 visits 10 winrate 1.5 info move R4 visits 5 winrate 0.4", 1},
	}
	for _, tt := range tests {
		if got := parseAnalyzeLine(tt.line); len(got) != tt.want {
			t.Errorf("%s: candidates = %d, want %d", tt.name, len(got), tt.want)
		}
	}
}

// fakeGTP simulates an engine on the other side of the session pipes.
// analyzeLines are streamed in response to kata-analyze; all setup
// commands succeed.
type fakeGTP struct {
	stdinR  *io.PipeReader
	stdoutW *io.PipeWriter

	analyzeLines []string
	commands     chan string
}

func newFakeGTP(t *testing.T, analyzeLines []string) (*gtpSession, *fakeGTP) {
	t.Helper()
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	f := &fakeGTP{
		stdinR:       stdinR,
		stdoutW:      stdoutW,
		analyzeLines: analyzeLines,
		commands:     make(chan string, 64),
	}
	go f.serve()
	t.Cleanup(func() {
		stdinR.Close()
		stdoutW.Close()
	})
	return newGTPSession(stdinW, stdoutR), f
}

func (f *fakeGTP) serve() {
	scanner := bufio.NewScanner(f.stdinR)
	for scanner.Scan() {
		cmd := scanner.Text()
		f.commands <- cmd
		switch {
		case cmd == "name":
			fmt.Fprintf(f.stdoutW, "= kata1-fake\n\n")
		case strings.HasPrefix(cmd, "kata-analyze"):
			for _, line := range f.analyzeLines {
				fmt.Fprintf(f.stdoutW, "%s\n", line)
			}
		case cmd == "stop":
			fmt.Fprintf(f.stdoutW, "=\n\n")
		case cmd == "quit":
			f.stdoutW.Close()
			return
		case strings.HasPrefix(cmd, "bogus"):
			fmt.Fprintf(f.stdoutW, "? unknown command\n\n")
		default:
			fmt.Fprintf(f.stdoutW, "=\n\n")
		}
	}
}

func TestSessionCommand(t *testing.T) {
	s, _ := newFakeGTP(t, nil)
	defer s.quit()

	resp, err := s.command("name")
	if err != nil {
		t.Fatal(err)
	}
	if resp != "kata1-fake" {
		t.Errorf("name = %q", resp)
	}

	_, err = s.command("bogus")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("err = %v, want *CommandError", err)
	}
	if cmdErr.Msg != "unknown command" {
		t.Errorf("msg = %q", cmdErr.Msg)
	}
}

func TestSessionAnalyzeReachesBudget(t *testing.T) {
	s, _ := newFakeGTP(t, []string{
		"info move Q16 visits 40 winrate 0.51 scoreLead 0.2 order 0 pv Q16",
		"info move Q16 visits 150 winrate 0.52 scoreLead 0.3 order 0 pv Q16 D4 " +
			"info move D4 visits 60 winrate 0.50 scoreLead 0.1 order 1 pv D4",
	})
	defer s.quit()

	candidates, complete, err := s.analyze(context.Background(), board.Black, 150)
	if err != nil {
		t.Fatal(err)
	}
	if !complete {
		t.Error("analysis should be complete at the visit budget")
	}
	if len(candidates) != 2 || candidates[0].Move != "Q16" || candidates[0].Visits != 150 {
		t.Errorf("candidates = %+v", candidates)
	}
}

func TestSessionAnalyzeInterrupted(t *testing.T) {
	// Budget far above what the fake reports: analysis only ends when the
	// context is cancelled, returning the partial snapshot.
	s, _ := newFakeGTP(t, []string{
		"info move Q16 visits 40 winrate 0.51 scoreLead 0.2 order 0 pv Q16",
	})
	defer s.quit()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	candidates, complete, err := s.analyze(ctx, board.Black, 100000)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if complete {
		t.Error("interrupted analysis must not be complete")
	}
	if len(candidates) != 1 || candidates[0].Visits != 40 {
		t.Errorf("partial candidates = %+v", candidates)
	}
}

func TestNewGTPDisabled(t *testing.T) {
	_, err := NewGTP(types.EngineConfig{Enabled: false}, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
