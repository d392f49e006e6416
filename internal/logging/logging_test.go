package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestLoggerCreation(t *testing.T) {
	logger := New("test-component")

	if logger.component != "test-component" {
		t.Errorf("expected component 'test-component', got '%s'", logger.component)
	}
}

func TestLoggerWithPlan(t *testing.T) {
	logger := New("component").WithPlan("plan-42")

	if logger.plan != "plan-42" {
		t.Errorf("expected plan 'plan-42', got '%s'", logger.plan)
	}
}

func TestLoggerWithStep(t *testing.T) {
	logger := New("component").WithPlan("plan-42").WithStep("step-1")

	if logger.step != "step-1" {
		t.Errorf("expected step 'step-1', got '%s'", logger.step)
	}
	if logger.plan != "plan-42" {
		t.Errorf("WithStep should keep plan, got '%s'", logger.plan)
	}
}

func TestLogOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	logger := New("scheduler").WithPlan("p1")
	logger.Warn("cycle_detected", map[string]interface{}{"steps": 2}, nil)

	line := strings.TrimSpace(buf.String())
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	if parsed["level"] != "warn" {
		t.Errorf("expected level 'warn', got '%v'", parsed["level"])
	}
	if parsed["component"] != "scheduler" {
		t.Errorf("expected component 'scheduler', got '%v'", parsed["component"])
	}
	if parsed["event"] != "cycle_detected" {
		t.Errorf("expected event 'cycle_detected', got '%v'", parsed["event"])
	}
	if parsed["plan"] != "p1" {
		t.Errorf("expected plan 'p1', got '%v'", parsed["plan"])
	}
}

func TestRecoverLogsPanic(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	func() {
		defer Recover("executor")
		panic("boom")
	}()

	if !strings.Contains(buf.String(), "panic_recovered") {
		t.Errorf("expected panic_recovered event, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected panic value in output, got: %s", buf.String())
	}
}

func TestWrapErrorReturnsPanicAsError(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	h := NewRecoveryHandler("control-loop")
	err := h.WrapError(func() error {
		panic("unexpected")
	})

	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	if !strings.Contains(err.Error(), "control-loop") {
		t.Errorf("expected component in error, got: %v", err)
	}
}
