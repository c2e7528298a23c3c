package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/adcompliance/domain/agent"
)

// testLogger creates a logger that writes to a buffer for testing
func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := bolt.New(bolt.NewJSONHandler(buf)).SetLevel(bolt.TRACE)
	return logger, buf
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"info", bolt.INFO},
		{"warn", bolt.WARN},
		{"error", bolt.ERROR},
		{"unknown", bolt.INFO},
		{"", bolt.INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{"run id", RunID("run-123"), `"run_id":"run-123"`},
		{"state", State(agent.StateActing), `"state":"acting"`},
		{"transition", Transition(agent.StateThinking, agent.StateActing), `"to_state":"acting"`},
		{"tool", ToolName("analyze_vision"), `"tool":"analyze_vision"`},
		{"stage", Stage("agent_thinking"), `"stage":"agent_thinking"`},
		{"iteration", Iteration(7), `"iteration":7`},
		{"file", File("promo.png"), `"file":"promo.png"`},
		{"decision", Decision(agent.DecisionFinish), `"decision":"finish"`},
		{"duration", Duration(100 * time.Millisecond), `"duration_ms":100`},
		{"cached", Cached(true), `"cached":true`},
		{"count", Count("files", 3), `"files":3`},
		{"tokens", Tokens(12, 5), `"completion_tokens":5`},
		{"cost", Cost(0.0125), `"cost_usd":"0.012500"`},
		{"component", Component("retriever"), `"component":"retriever"`},
		{"str", Str("k", "v"), `"k":"v"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, buf := testLogger()
			tt.field(logger.Info()).Msg("test")
			if !bytes.Contains(buf.Bytes(), []byte(tt.want)) {
				t.Errorf("expected %s in output: %s", tt.want, buf.String())
			}
		})
	}
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	ErrorField(errors.New("boom"))(logger.Error()).Msg("failed")
	if !bytes.Contains(buf.Bytes(), []byte("boom")) {
		t.Errorf("expected error in output: %s", buf.String())
	}

	logger, buf = testLogger()
	ErrorField(nil)(logger.Info()).Msg("ok")
	if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
		t.Errorf("nil error should add no field: %s", buf.String())
	}
}

func TestSetLoggerAndHelpers(t *testing.T) {
	logger, buf := testLogger()
	SetLogger(logger)
	t.Cleanup(func() { SetLogger(nil) })

	Info().Add(RunID("r1")).Add(Stage("verify_dates")).Msg("stage done")
	Warn().Add(File("a.png")).Msg("empty")
	Debug().Send()

	out := buf.String()
	for _, want := range []string{`"run_id":"r1"`, `"stage":"verify_dates"`, "stage done", `"file":"a.png"`} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("expected %s in output: %s", want, out)
		}
	}
}

func TestNew_Formats(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	New(Config{Level: "debug", Format: "json", Output: buf}).Debug().Msg("hello")
	if !bytes.Contains(buf.Bytes(), []byte(`"hello"`)) {
		t.Errorf("json output = %s", buf.String())
	}

	buf.Reset()
	New(Config{Level: "warn", Format: "console", Output: buf}).Info().Msg("hidden")
	if bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Errorf("info should be filtered at warn level: %s", buf.String())
	}
}
