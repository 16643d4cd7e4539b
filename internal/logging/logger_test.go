package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_CachedPerComponent(t *testing.T) {
	a := NewLogger("sync")
	b := NewLogger("sync")
	c := NewLogger("search")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, "sync", a.Data["component"])
}

func TestConfigure_AppliesToExistingLoggers(t *testing.T) {
	log := NewLogger("configure-test")

	var buf bytes.Buffer
	Configure(Options{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { Configure(Options{}) })

	log.Debug("hidden")
	log.WithField("path", "/tmp/a.jsonl").Info("indexed")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "indexed", entry["msg"])
	assert.Equal(t, "configure-test", entry["component"])
	assert.Equal(t, "/tmp/a.jsonl", entry["path"])
}

func TestConfigure_DefaultsToWarn(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "bogus", Output: &buf})
	t.Cleanup(func() { Configure(Options{}) })

	log := NewLogger("default-level")
	log.Info("quiet")
	assert.Empty(t, buf.String())
	log.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}
