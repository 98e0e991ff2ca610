package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newBufferedLogger(buf *bytes.Buffer) *GraphLogger {
	return NewLogger(&LoggerConfig{
		Level:     slog.LevelDebug,
		Format:    "json",
		Output:    buf,
		Component: "engine",
	})
}

func TestLogModelCallCompleted(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(&buf)

	l.LogModelCall("openai", "gpt-4o-mini", 42, 150*time.Millisecond, nil)

	out := buf.String()
	assert.Contains(t, out, "Model call completed")
	assert.Contains(t, out, `"provider":"openai"`)
	assert.Contains(t, out, `"token_count":42`)
	assert.Contains(t, out, `"component":"engine"`)
}

func TestLogModelCallFailed(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(&buf)

	l.LogModelCall("anthropic", "claude", 0, time.Millisecond, errors.New("rate limited"))

	out := buf.String()
	assert.Contains(t, out, "Model call failed")
	assert.Contains(t, out, "rate limited")
}

func TestWithExecutionScopesFields(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(&buf).WithExecution("wf-1", "exec-1")

	l.Info("node executed", "node_id", "a")

	out := buf.String()
	assert.Contains(t, out, `"workflow_id":"wf-1"`)
	assert.Contains(t, out, `"execution_id":"exec-1"`)
	assert.Contains(t, out, `"node_id":"a"`)
}
