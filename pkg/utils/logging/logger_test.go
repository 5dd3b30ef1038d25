package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
	"github.com/m-mizutani/gt"
)

func TestNew(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("info", buf, logging.FormatConsole)
	gt.V(t, logger).NotNil()

	logger.Info("call connected")
	gt.S(t, buf.String()).Contains("call connected")
}

func TestNewLevels(t *testing.T) {
	testCases := []struct {
		level       string
		expectDebug bool
		expectInfo  bool
		expectWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warning", false, false, true},
		{"ERROR", false, false, false},
		{"", false, true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.New(tc.level, buf, logging.FormatConsole)

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message")

			output := buf.String()
			gt.Equal(t, bytes.Contains([]byte(output), []byte("debug message")), tc.expectDebug)
			gt.Equal(t, bytes.Contains([]byte(output), []byte("info message")), tc.expectInfo)
			gt.Equal(t, bytes.Contains([]byte(output), []byte("warn message")), tc.expectWarn)
			gt.S(t, output).Contains("error message")
		})
	}
}

func TestNewInvalidLevelWarns(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("loud", buf, logging.FormatConsole)

	logger.Info("still works")
	gt.S(t, buf.String()).Contains("invalid log level")
	gt.S(t, buf.String()).Contains("still works")
}

func TestJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("info", buf, logging.ParseFormat("JSON"))
	logger.Info("tool result dropped", "tool", "createBooking")

	var record map[string]any
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	gt.Equal(t, record["msg"], any("tool result dropped"))
	gt.Equal(t, record["tool"], any("createBooking"))
}

func TestParseFormat(t *testing.T) {
	gt.Equal(t, logging.ParseFormat("json"), logging.FormatJSON)
	gt.Equal(t, logging.ParseFormat("console"), logging.FormatConsole)
	gt.Equal(t, logging.ParseFormat("yaml"), logging.FormatConsole)
}

func TestWithAndFrom(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("debug", buf, logging.FormatConsole)

	ctx := logging.With(context.Background(), logger)
	gt.Equal(t, logging.From(ctx), logger)

	logging.From(ctx).Info("context message")
	gt.S(t, buf.String()).Contains("context message")
}

func TestWithAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logging.With(context.Background(), logging.New("info", buf, logging.FormatConsole))
	ctx = logging.WithAttrs(ctx, "session_id", "abc-123")

	logging.From(ctx).Info("session message")
	gt.S(t, buf.String()).Contains("session_id")
	gt.S(t, buf.String()).Contains("abc-123")
}

func TestFromUsesDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	custom := logging.New("warn", buf, logging.FormatConsole)
	logging.SetDefault(custom)

	retrieved := logging.From(context.Background())
	gt.Equal(t, retrieved, custom)

	retrieved.Warn("warning from default")
	gt.S(t, buf.String()).Contains("warning from default")
}
