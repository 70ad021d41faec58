package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	// Info should pass
	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("info message should be logged")
	}

	output := buf.String()
	if !strings.Contains(output, "INFO") {
		t.Error("log should contain INFO level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("log should contain the message")
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("claim")
	logger.SetOutput(&buf)

	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "[claim]") {
		t.Errorf("expected component 'claim' in log, got: %s", output)
	}
}

func TestLogger_WithWorkerID(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithWorkerID("host-a1b2c3d4")
	logger.SetOutput(&buf)

	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "worker=host-a1b2c3d4") {
		t.Errorf("expected worker identity in log, got: %s", output)
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("claim won", map[string]interface{}{
		"row": "vid-123",
	})

	output := buf.String()
	if !strings.Contains(output, "row=vid-123") {
		t.Errorf("expected field 'row=vid-123' in log, got: %s", output)
	}
}

func TestLogger_RowEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.RowEvent("stall reset", "Video Tasks", "vid-9", map[string]interface{}{
		"retries": 2,
	})

	output := buf.String()
	for _, want := range []string{"stall reset", "table=Video Tasks", "row=vid-9", "retries=2"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in log, got: %s", want, output)
		}
	}
}
