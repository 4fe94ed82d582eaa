package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Debugf("x %d", 1)
	l.Infof("x")
	l.Warnf("x")
	l.Errorf("x")
	assert.Nil(t, l.With("c"))
	assert.NoError(t, l.Close())
}

func TestComponentTagging(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).With("scheduler")
	l.Infof("executed %d tasks", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "scheduler", line["component"])
	assert.Equal(t, "executed 3 tasks", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "quill.log")
	l, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)
	l.With("composer").Debugf("hello")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"component":"composer"`))
}

func TestInvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestDefaultFallsBackToNop(t *testing.T) {
	SetDefault(nil)
	assert.NotNil(t, Default())
	Component("x").Infof("discarded")
}
