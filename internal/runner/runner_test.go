package runner

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestArgs(t *testing.T) {
	r := New(`C:\scripts\ExportIFC.py`, false, 0, testLog())

	assert.Equal(t,
		[]string{"run", `C:\scripts\ExportIFC.py`, "--models", "Task2022.txt", "--revit", "2022"},
		r.Args(2022, "Task2022.txt"))
}

func TestArgsDebug(t *testing.T) {
	r := New("ExportIFC.py", true, time.Minute, testLog())

	args := r.Args(2020, "Task2020.txt")
	assert.Equal(t, "--debug", args[len(args)-1])
}

func TestEnvInjectsProjectRoot(t *testing.T) {
	t.Setenv("PYTHONPATH", "/existing")
	t.Setenv("IRONPYTHONPATH", "")

	r := New("/opt/exportifc/ExportIFC.py", false, 0, testLog())

	env := map[string]string{}
	for _, kv := range r.Env() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	assert.Equal(t, "/opt/exportifc", env["EXPORTIFC_ROOT"])
	// корень проекта добавляется в начало
	assert.True(t, strings.HasPrefix(env["PYTHONPATH"], "/opt/exportifc"))
	assert.Contains(t, env["PYTHONPATH"], "/existing")
	assert.Equal(t, "/opt/exportifc", env["IRONPYTHONPATH"])
}

func TestStreamOutput(t *testing.T) {
	r := New("ExportIFC.py", false, 0, testLog())

	err := r.streamOutput(strings.NewReader("строка 1\nстрока 2\n"))
	assert.NoError(t, err)
}

func TestStreamOutputOverlongLine(t *testing.T) {
	r := New("ExportIFC.py", false, 0, testLog())

	// строка длиннее буфера сканера не должна проглатываться молча
	long := strings.Repeat("x", 1024*1024+1)
	err := r.streamOutput(strings.NewReader(long))
	assert.ErrorIs(t, err, bufio.ErrTooLong)
}
