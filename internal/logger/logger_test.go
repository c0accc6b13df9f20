package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// captureOutput redirects logger output to a buffer for testing.
// Returns the buffer and a cleanup function to restore original output.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false // disable colors for easier assertions
	mu.Unlock()

	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		reconfigure()
	}

	return buf, cleanup
}

// ============================================================================
// Level Filtering Tests
// ============================================================================

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "debug message")
		assert.Contains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("InfoLevelFiltersDebug", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")

		Debug("debug message")
		Info("info message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.Contains(t, out, "info message")
	})

	t.Run("ErrorLevelShowsOnlyErrors", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("ERROR")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.NotContains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("InvalidLevelIsIgnored", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetLevel("LOUD")

		Info("still info")
		assert.Contains(t, buf.String(), "still info")
	})
}

// ============================================================================
// Structured Field Tests
// ============================================================================

func TestStructuredFields(t *testing.T) {
	t.Run("KeyValuePairsAppearInTextOutput", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetFormat("text")

		Info("segment posted",
			KeySegmentIndex, 3,
			KeyMessageID, "<abc123@ngPost.com>",
			KeyProvider, "primary")

		out := buf.String()
		assert.Contains(t, out, "segment posted")
		assert.Contains(t, out, "segment_index=3")
		assert.Contains(t, out, "message_id=<abc123@ngPost.com>")
		assert.Contains(t, out, "provider=primary")
	})

	t.Run("JSONFormatEmitsParseableRecords", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetFormat("json")
		defer SetFormat("text")

		Info("upload complete", KeyFolderID, "f1", KeyCount, 42)

		var record map[string]any
		line := strings.TrimSpace(buf.String())
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		assert.Equal(t, "upload complete", record["msg"])
		assert.Equal(t, "f1", record[KeyFolderID])
		assert.Equal(t, float64(42), record[KeyCount])
	})
}

// ============================================================================
// Context-aware Logging Tests
// ============================================================================

func TestContextLogging(t *testing.T) {
	t.Run("LogContextFieldsArePrepended", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetFormat("text")

		lc := NewLogContext("upload").WithFolder("folder-1").WithProvider("primary")
		ctx := WithContext(context.Background(), lc)

		InfoCtx(ctx, "worker started", KeyWorkers, 4)

		out := buf.String()
		assert.Contains(t, out, "operation=upload")
		assert.Contains(t, out, "folder_id=folder-1")
		assert.Contains(t, out, "provider=primary")
		assert.Contains(t, out, "workers=4")
	})

	t.Run("NilLogContextIsHarmless", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		InfoCtx(context.Background(), "no context fields")

		assert.Contains(t, buf.String(), "no context fields")
	})

	t.Run("CloneDoesNotAliasTheOriginal", func(t *testing.T) {
		lc := NewLogContext("download").WithShare("MRFE3BX25XTF5CH6FPP2PXDL")
		clone := lc.WithProvider("backup")

		assert.Equal(t, "", lc.Provider)
		assert.Equal(t, "backup", clone.Provider)
		assert.Equal(t, lc.ShareID, clone.ShareID)
	})
}

// ============================================================================
// Init Tests
// ============================================================================

func TestInit(t *testing.T) {
	t.Run("InitWithWriterRoutesOutput", func(t *testing.T) {
		buf := new(bytes.Buffer)
		InitWithWriter(buf, "INFO", "text", false)
		t.Cleanup(func() { InitWithWriter(os.Stdout, "INFO", "text", false) })

		Info("routed")
		assert.Contains(t, buf.String(), "routed")
	})

	t.Run("InitRejectsUnwritableLogFile", func(t *testing.T) {
		err := Init(Config{Output: "/nonexistent-dir-zz/log.txt"})
		require.Error(t, err)
	})
}

// ============================================================================
// Field Constructor Tests
// ============================================================================

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, KeyShareID, ShareID("X").Key)
	assert.Equal(t, KeySegmentIndex, SegmentIndex(1).Key)
	assert.Equal(t, KeyMessageID, MessageID("<x@ngPost.com>").Key)
	assert.Equal(t, KeyProvider, Provider("primary").Key)
	assert.Equal(t, KeyStoreType, StoreType("badger").Key)

	// Err(nil) must collapse to the empty attr so handlers drop it
	assert.True(t, Err(nil).Equal(slog.Attr{}))
}
