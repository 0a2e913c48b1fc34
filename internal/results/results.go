// Package results persists agent reports under a local bucket directory.
package results

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"activityplanner/internal/domain"
	"activityplanner/internal/tool"
)

// DefaultKey is the object name the agent writes its report to.
const DefaultKey = "results.md"

// Store writes objects to <dir>/<bucket>/<key>.
type Store struct {
	dir    string
	bucket string
	logger *slog.Logger
}

type StoreConfig struct {
	Dir    string
	Bucket string
	Logger *slog.Logger
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("results dir is required")
	}
	if cfg.Bucket == "" || strings.ContainsAny(cfg.Bucket, `/\`) || cfg.Bucket == "." || cfg.Bucket == ".." {
		return nil, fmt.Errorf("invalid results bucket %q", cfg.Bucket)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{dir: cfg.Dir, bucket: cfg.Bucket, logger: cfg.Logger}, nil
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Put writes content under key, replacing any previous object.
func (s *Store) Put(ctx context.Context, key, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.objectPath(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create bucket: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("stage object: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("commit object: %w", err)
	}
	s.logger.Info("results stored", "bucket", s.bucket, "key", key, "bytes", len(content))
	return path, nil
}

// Get reads the object stored under key.
func (s *Store) Get(key string) (string, error) {
	path, err := s.objectPath(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}
	return string(data), nil
}

// objectPath resolves key inside the bucket and rejects traversal.
func (s *Store) objectPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	root, err := filepath.Abs(filepath.Join(s.dir, s.bucket))
	if err != nil {
		return "", fmt.Errorf("resolve bucket: %w", err)
	}
	path := filepath.Join(root, filepath.Clean("/"+key))
	if !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes bucket %q", key, s.bucket)
	}
	return path, nil
}

// SaveTool is the agent-only save_results tool.
type SaveTool struct {
	store *Store
}

func NewSaveTool(store *Store) *SaveTool { return &SaveTool{store: store} }

func (t *SaveTool) Name() string { return "save_results" }
func (t *SaveTool) Description() string {
	return fmt.Sprintf("Store the final markdown report in the results bucket %q (default key %s)", t.store.Bucket(), DefaultKey)
}
func (t *SaveTool) Parameters() map[string]any {
	schema, _ := tool.ObjectSchema(
		tool.Required("content", "Markdown report to store"),
		tool.Optional("key", "Object name inside the bucket, defaults to "+DefaultKey),
	)
	return schema
}

func (t *SaveTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	content := tool.StringArg(args, "content")
	if strings.TrimSpace(content) == "" {
		return "", &domain.ArgumentError{Field: "content"}
	}
	key := tool.StringArg(args, "key")
	if key == "" {
		key = DefaultKey
	}
	if _, err := t.store.Put(ctx, key, content); err != nil {
		return "", err
	}
	return fmt.Sprintf("Stored %s in bucket %s", key, t.store.Bucket()), nil
}
