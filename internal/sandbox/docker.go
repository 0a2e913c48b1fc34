package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"activityplanner/internal/domain"
)

// maxOutput caps the stdout/stderr carried in the final event.
const maxOutput = 100000

// interpreters maps a language to the command that reads a program on stdin.
var interpreters = map[string][]string{
	"python":     {"python3", "-"},
	"javascript": {"node", "-"},
}

// DockerConfig configures the Docker code interpreter.
type DockerConfig struct {
	Binary    string            // docker CLI (default: "docker")
	Images    map[string]string // language -> image
	Timeout   time.Duration     // per execution
	MaxMemory string            // e.g. "256m"
	MaxCPU    string            // e.g. "0.5"
	Logger    *slog.Logger
}

// Docker runs code in isolated, network-less containers. One session owns
// at most one container per language, removed on Close.
type Docker struct {
	binary    string
	images    map[string]string
	timeout   time.Duration
	maxMemory string
	maxCPU    string
	logger    *slog.Logger
}

func NewDocker(cfg DockerConfig) *Docker {
	if cfg.Binary == "" {
		cfg.Binary = "docker"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxMemory == "" {
		cfg.MaxMemory = "256m"
	}
	if cfg.MaxCPU == "" {
		cfg.MaxCPU = "0.5"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Docker{
		binary:    cfg.Binary,
		images:    cfg.Images,
		timeout:   cfg.Timeout,
		maxMemory: cfg.MaxMemory,
		maxCPU:    cfg.MaxCPU,
		logger:    cfg.Logger,
	}
}

// Start checks that the Docker daemon is reachable and returns an empty
// session. Containers are created on first use.
func (d *Docker) Start(ctx context.Context, interpreterID string) (domain.SandboxSession, error) {
	if err := d.checkDocker(ctx); err != nil {
		return nil, err
	}
	return &session{
		docker:     d,
		id:         interpreterID,
		containers: make(map[string]string),
	}, nil
}

// checkDocker verifies that Docker is available.
func (d *Docker) checkDocker(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, d.binary, "version", "--format", "{{.Server.Version}}")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker not available: %w", err)
	}
	return nil
}

// runArgs builds the detached container command for image.
func (d *Docker) runArgs(name, interpreterID, image string) []string {
	return []string{
		"run", "-d", "--rm",
		"--name", name,
		"--label", "planner.interpreter=" + interpreterID,
		"--network", "none",
		"--memory", d.maxMemory,
		"--cpus", d.maxCPU,
		"--pids-limit", "100",
		"--read-only",
		"--tmpfs", "/tmp:rw,size=64m",
		"--workdir", "/tmp",
		image,
		"sleep", "infinity",
	}
}

type session struct {
	docker *Docker
	id     string

	mu         sync.Mutex
	containers map[string]string // language -> container name
	closed     bool
}

func (s *session) container(ctx context.Context, language string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errors.New("sandbox session closed")
	}
	if name, ok := s.containers[language]; ok {
		return name, nil
	}
	image, ok := s.docker.images[language]
	if !ok {
		return "", fmt.Errorf("no image configured for language %q", language)
	}

	name := "planner-" + uuid.NewString()[:8]
	out, err := exec.CommandContext(ctx, s.docker.binary, s.docker.runArgs(name, s.id, image)...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("start container: %w: %s", err, strings.TrimSpace(string(out)))
	}
	s.docker.logger.Debug("sandbox container started", "name", name, "image", image, "interpreter", s.id)
	s.containers[language] = name
	return name, nil
}

// Execute runs req.Code in the language's container. Every stdout line is
// streamed as a string event; the last event is the summary object
// {content, structuredContent, isError}. A fresh process per call means
// ClearContext always holds.
func (s *session) Execute(ctx context.Context, req domain.ExecRequest) (<-chan domain.SandboxEvent, error) {
	argv, ok := interpreters[req.Language]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", req.Language)
	}
	name, err := s.container(ctx, req.Language)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.docker.timeout)
	cmd := exec.CommandContext(ctx, s.docker.binary, append([]string{"exec", "-i", name}, argv...)...)
	cmd.Stdin = strings.NewReader(req.Code)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("exec in sandbox: %w", err)
	}
	s.docker.logger.Info("sandbox executing", "container", name, "language", req.Language, "bytes", len(req.Code))

	events := make(chan domain.SandboxEvent)
	go func() {
		defer close(events)
		defer cancel()

		captured, scanErr := streamLines(ctx, stdout, events)
		waitErr := cmd.Wait()

		if ctx.Err() == context.DeadlineExceeded {
			send(ctx, events, domain.SandboxEvent{Err: fmt.Errorf("execution timed out after %s", s.docker.timeout)})
			return
		}
		if scanErr != nil {
			send(ctx, events, domain.SandboxEvent{Err: scanErr})
			return
		}
		exitCode := 0
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else if waitErr != nil {
			send(ctx, events, domain.SandboxEvent{Err: waitErr})
			return
		}
		send(ctx, events, summaryEvent(captured, stderr.String(), exitCode))
	}()
	return events, nil
}

// Close removes every container the session started. It is safe to call
// more than once.
func (s *session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	names := make([]string, 0, len(s.containers))
	for _, n := range s.containers {
		names = append(names, n)
	}
	s.mu.Unlock()

	if len(names) == 0 {
		return nil
	}
	out, err := exec.CommandContext(ctx, s.docker.binary, append([]string{"rm", "-f"}, names...)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("remove containers %v: %w: %s", names, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// maxLine caps a single streamed stdout line; the rest of the line is
// read and dropped so the interpreter never blocks on a full pipe.
const maxLine = 1024 * 1024

// streamLines forwards each line of r as a JSON string event and returns
// the full captured text. r is always read to EOF.
func streamLines(ctx context.Context, r io.Reader, events chan<- domain.SandboxEvent) (string, error) {
	var all strings.Builder
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := readLine(br, maxLine)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			_, _ = io.Copy(io.Discard, r)
			return all.String(), err
		}
		if all.Len() < maxOutput {
			all.WriteString(line)
			all.WriteByte('\n')
		}
		b, _ := json.Marshal(line)
		if !send(ctx, events, domain.SandboxEvent{Result: b}) {
			_, _ = io.Copy(io.Discard, r)
			return all.String(), ctx.Err()
		}
	}
}

// readLine returns the next line without its terminator, clipped to limit
// bytes. A final line without a newline is returned with a nil error.
func readLine(br *bufio.Reader, limit int) (string, error) {
	var (
		buf     []byte
		clipped bool
	)
	for {
		chunk, more, err := br.ReadLine()
		if err != nil {
			if len(buf) > 0 {
				break
			}
			return "", err
		}
		if room := limit - len(buf); len(chunk) > room {
			chunk = chunk[:room]
			clipped = true
		}
		buf = append(buf, chunk...)
		if !more {
			break
		}
	}
	if clipped {
		return string(buf) + " ... (line truncated)", nil
	}
	return string(buf), nil
}

func send(ctx context.Context, events chan<- domain.SandboxEvent, evt domain.SandboxEvent) bool {
	select {
	case events <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

type summary struct {
	Content []contentBlock `json:"content"`
	Output  output         `json:"structuredContent"`
	IsError bool           `json:"isError"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type output struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

func summaryEvent(stdout, stderr string, exitCode int) domain.SandboxEvent {
	stdout = clip(strings.TrimRight(stdout, "\n"))
	stderr = clip(strings.TrimRight(stderr, "\n"))
	text := stdout
	if exitCode != 0 && stderr != "" {
		text = strings.TrimSpace(stdout + "\n" + stderr)
	}
	b, _ := json.Marshal(summary{
		Content: []contentBlock{{Type: "text", Text: text}},
		Output:  output{Stdout: stdout, Stderr: stderr, ExitCode: exitCode},
		IsError: exitCode != 0,
	})
	return domain.SandboxEvent{Result: b}
}

func clip(s string) string {
	if len(s) > maxOutput {
		return s[:maxOutput] + "\n... (output truncated)"
	}
	return s
}
