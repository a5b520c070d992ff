package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/randalmurphal/taskq/internal/agent"
	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

func TestStateIcon(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state    string
		paused   bool
		expected string
	}{
		{agent.StateUnapproved, false, "📝"},
		{agent.StateApproved, false, "📋"},
		{agent.StateRequested, false, "⏳"},
		{agent.StateFinished, false, "✅"},
		{agent.StateApproved, true, "⏸️"},
	}

	for _, tt := range tests {
		if got := stateIcon(tt.state, tt.paused); got != tt.expected {
			t.Errorf("stateIcon(%s, %v) = %s, want %s", tt.state, tt.paused, got, tt.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     string
		max    int
		expect string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer title here", 10, "a longe..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.expect {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.expect)
		}
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, tqerrors.ErrTaskNotFound("T-1"))
	if !strings.HasPrefix(buf.String(), "Error: ") || !strings.Contains(buf.String(), "T-1") {
		t.Errorf("unexpected output: %q", buf.String())
	}

	buf.Reset()
	printError(&buf, errors.New("boom"))
	if buf.String() != "Error: boom\n" {
		t.Errorf("plain error output = %q", buf.String())
	}
}
