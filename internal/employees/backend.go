package employees

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dayuer/officebot/internal/redis"
)

// Backend loads and saves the whole employee document.
type Backend interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}

// FileBackend keeps the document in a JSON file. A missing file reads as the
// default departments; saves replace the file atomically.
type FileBackend struct {
	Path string
}

// NewFileBackend creates a backend for path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

func (b *FileBackend) Load(_ context.Context) (Document, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDocument(), nil
		}
		return nil, fmt.Errorf("read employees: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse employees %s: %w", b.Path, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

func (b *FileBackend) Save(_ context.Context, doc Document) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create employees dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode employees: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".employees-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace employees file: %w", err)
	}
	return nil
}

// RedisBackend keeps the document as one JSON value in Redis.
type RedisBackend struct {
	Key string
}

// NewRedisBackend creates a backend using the shared client from internal/redis.
func NewRedisBackend(key string) *RedisBackend {
	if key == "" {
		key = redis.KeyEmployees
	}
	return &RedisBackend{Key: key}
}

func (b *RedisBackend) Load(ctx context.Context) (Document, error) {
	var doc Document
	found, err := redis.GetJSON(ctx, b.Key, &doc)
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}
	if !found || doc == nil {
		return DefaultDocument(), nil
	}
	return doc, nil
}

func (b *RedisBackend) Save(ctx context.Context, doc Document) error {
	if err := redis.SetJSON(ctx, b.Key, doc); err != nil {
		return fmt.Errorf("save employees: %w", err)
	}
	return nil
}

// OpenBackend returns the backend named by kind. When "redis" is asked for but
// the shared client is not connected, it returns the file backend together with
// an error the caller may log.
func OpenBackend(kind, path, redisKey string) (Backend, error) {
	switch kind {
	case "", "file":
		return NewFileBackend(path), nil
	case "redis":
		if !redis.IsAvailable() {
			return NewFileBackend(path), fmt.Errorf("employee store: %w, using %s", redis.ErrUnavailable, path)
		}
		return NewRedisBackend(redisKey), nil
	default:
		return nil, errors.New("employee store: unknown backend " + kind)
	}
}
