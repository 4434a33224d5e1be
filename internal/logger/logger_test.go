package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for testing.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
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

func TestLevelFiltering(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("WARN")
	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("DEBUG")
	SetFormat("json")
	Info("serving file", Filename("kernel.img"), Size(51200))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "serving file", entry["msg"])
	assert.Equal(t, "kernel.img", entry[KeyFilename])
	assert.Equal(t, float64(51200), entry[KeySize])
}

func TestSetFormatRejectsUnknown(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	SetFormat("xml")
	assert.Equal(t, "json", currentFormat.Load())
}

func TestContextFieldInjection(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	lc := NewLogContext("192.168.10.10").WithOpcode("RRQ").WithFilename("grub/grub.cfg")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "handling request")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "192.168.10.10", entry[KeyClientIP])
	assert.Equal(t, "RRQ", entry[KeyOpcode])
	assert.Equal(t, "grub/grub.cfg", entry[KeyFilename])
}

func TestLogContextClone(t *testing.T) {
	lc := NewLogContext("10.0.0.7").WithOpcode("RRQ")
	clone := lc.Clone()
	clone.Opcode = "DATA"

	assert.Equal(t, "RRQ", lc.Opcode)
	assert.Equal(t, "DATA", clone.Opcode)
}

func TestFromContextNil(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	assert.Nil(t, FromContext(nil))
}

func TestPrintfCompat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("DEBUG")
	Infof("block %d of %d", 3, 10)
	assert.True(t, strings.Contains(buf.String(), "block 3 of 10"))
}
