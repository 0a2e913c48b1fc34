package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activityplanner/internal/domain"
)

// fakeDocker writes a docker stand-in that echoes exec'd programs back on
// stdout and logs every invocation to calls.log.
func fakeDocker(t *testing.T, execBody string) (bin, log string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	dir := t.TempDir()
	log = filepath.Join(dir, "calls.log")
	script := `#!/bin/sh
echo "$@" >> "` + log + `"
case "$1" in
  version) echo 27.0.0 ;;
  run) echo 0123456789abcdef ;;
  exec) ` + execBody + ` ;;
  rm) exit 0 ;;
esac
`
	bin = filepath.Join(dir, "docker")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, log
}

func drain(t *testing.T, ch <-chan domain.SandboxEvent) []domain.SandboxEvent {
	t.Helper()
	var out []domain.SandboxEvent
	timeout := time.After(10 * time.Second)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, evt)
		case <-timeout:
			t.Fatal("event stream did not close")
		}
	}
}

func TestDocker_ExecuteStreamsLinesThenSummary(t *testing.T) {
	bin, log := fakeDocker(t, "cat")
	d := NewDocker(DockerConfig{Binary: bin, Images: map[string]string{"python": "python:3.12-slim"}})

	sess, err := d.Start(context.Background(), "ci-1")
	require.NoError(t, err)

	ch, err := sess.Execute(context.Background(), domain.ExecRequest{Code: "first\nsecond", Language: "python", ClearContext: true})
	require.NoError(t, err)
	events := drain(t, ch)
	require.Len(t, events, 3)

	var line string
	require.NoError(t, json.Unmarshal(events[0].Result, &line))
	assert.Equal(t, "first", line)

	var sum summary
	require.NoError(t, json.Unmarshal(events[2].Result, &sum))
	assert.False(t, sum.IsError)
	assert.Equal(t, "first\nsecond", sum.Output.Stdout)
	assert.Equal(t, "first\nsecond", sum.Content[0].Text)

	require.NoError(t, sess.Close(context.Background()))
	require.NoError(t, sess.Close(context.Background()))

	calls, err := os.ReadFile(log)
	require.NoError(t, err)
	assert.Contains(t, string(calls), "--network none")
	assert.Contains(t, string(calls), "planner.interpreter=ci-1")
	assert.Contains(t, string(calls), "python3 -")
	assert.Equal(t, 1, strings.Count(string(calls), "rm -f"))
}

func TestDocker_NonZeroExit(t *testing.T) {
	bin, _ := fakeDocker(t, `echo partial; echo "Traceback: boom" >&2; exit 1`)
	d := NewDocker(DockerConfig{Binary: bin, Images: map[string]string{"python": "python:3.12-slim"}})

	sess, err := d.Start(context.Background(), "ci-1")
	require.NoError(t, err)
	defer sess.Close(context.Background())

	ch, err := sess.Execute(context.Background(), domain.ExecRequest{Code: "raise", Language: "python"})
	require.NoError(t, err)
	events := drain(t, ch)
	require.NotEmpty(t, events)

	var sum summary
	require.NoError(t, json.Unmarshal(events[len(events)-1].Result, &sum))
	assert.True(t, sum.IsError)
	assert.Equal(t, 1, sum.Output.ExitCode)
	assert.Contains(t, sum.Content[0].Text, "Traceback: boom")
}

func TestDocker_UnsupportedLanguage(t *testing.T) {
	bin, _ := fakeDocker(t, "cat")
	d := NewDocker(DockerConfig{Binary: bin, Images: map[string]string{"python": "python:3.12-slim"}})
	sess, err := d.Start(context.Background(), "ci-1")
	require.NoError(t, err)

	_, err = sess.Execute(context.Background(), domain.ExecRequest{Code: "x", Language: "cobol"})
	assert.ErrorContains(t, err, "unsupported language")

	_, err = sess.Execute(context.Background(), domain.ExecRequest{Code: "x", Language: "javascript"})
	assert.ErrorContains(t, err, "no image configured")
}

func TestDocker_StartFailsWithoutDaemon(t *testing.T) {
	d := NewDocker(DockerConfig{Binary: filepath.Join(t.TempDir(), "missing-docker")})
	_, err := d.Start(context.Background(), "ci-1")
	assert.ErrorContains(t, err, "docker not available")
}

func TestSummaryEvent_Clips(t *testing.T) {
	evt := summaryEvent(strings.Repeat("x", maxOutput+10), "", 0)
	var sum summary
	require.NoError(t, json.Unmarshal(evt.Result, &sum))
	assert.True(t, strings.HasSuffix(sum.Output.Stdout, "(output truncated)"))
}

func TestDocker_OverlongLineIsClipped(t *testing.T) {
	bin, _ := fakeDocker(t, `head -c 2000000 /dev/zero | tr '\0' a; echo; echo after`)
	d := NewDocker(DockerConfig{Binary: bin, Images: map[string]string{"python": "python:3.12-slim"}, Timeout: 5 * time.Second})

	sess, err := d.Start(context.Background(), "ci-1")
	require.NoError(t, err)
	defer sess.Close(context.Background())

	start := time.Now()
	ch, err := sess.Execute(context.Background(), domain.ExecRequest{Code: "print('a' * 2000000)", Language: "python"})
	require.NoError(t, err)
	events := drain(t, ch)
	assert.Less(t, time.Since(start), 4*time.Second)
	require.Len(t, events, 3)
	for _, evt := range events {
		require.NoError(t, evt.Err)
	}

	var line string
	require.NoError(t, json.Unmarshal(events[0].Result, &line))
	assert.Len(t, line, maxLine+len(" ... (line truncated)"))
	assert.True(t, strings.HasSuffix(line, "(line truncated)"))

	require.NoError(t, json.Unmarshal(events[1].Result, &line))
	assert.Equal(t, "after", line)

	var sum summary
	require.NoError(t, json.Unmarshal(events[2].Result, &sum))
	assert.False(t, sum.IsError)
}

func TestReadLine(t *testing.T) {
	br := bufio.NewReaderSize(strings.NewReader("short\n"+strings.Repeat("x", 40)+"\r\nlast"), 16)

	line, err := readLine(br, 20)
	require.NoError(t, err)
	assert.Equal(t, "short", line)

	line, err = readLine(br, 20)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 20)+" ... (line truncated)", line)

	line, err = readLine(br, 20)
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = readLine(br, 20)
	assert.ErrorIs(t, err, io.EOF)
}
