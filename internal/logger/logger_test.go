package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestVerboseToggle(t *testing.T) {
	t.Cleanup(func() { SetVerbose(false) })

	assert.False(t, IsVerbose())
	SetVerbose(true)
	assert.True(t, IsVerbose())
	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestLevels(t *testing.T) {
	buf := capture(t)

	Debug("embedding %d chunks", 3)
	Info("loaded %s", "config.toml")
	Warn("retrying")

	assert.Equal(t,
		"[DEBUG] embedding 3 chunks\n[INFO] loaded config.toml\n[WARN] retrying\n",
		buf.String())
}

func TestSection(t *testing.T) {
	buf := capture(t)

	Section("Turn Pipeline")

	assert.Equal(t, "\n=== Turn Pipeline ===\n", buf.String())
}

func TestSilentWhenNotVerbose(t *testing.T) {
	buf := capture(t)
	SetVerbose(false)

	Debug("hidden")
	Info("hidden")
	Warn("hidden")
	Section("hidden")

	assert.Zero(t, buf.Len())
}

func TestConcurrentAccess(t *testing.T) {
	capture(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			SetVerbose(n%2 == 0)
			Debug("worker %d", n)
			IsVerbose()
		}(i)
	}
	wg.Wait()
}
