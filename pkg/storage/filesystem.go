package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LocalStorage persists objects on disk as <baseDir>/<bucket>/<key>.
type LocalStorage struct {
	baseDir       string
	publicBaseURL string
	signer        *SignedURLSigner
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir, publicBaseURL string, signer *SignedURLSigner) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./storage"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, publicBaseURL: strings.TrimRight(publicBaseURL, "/"), signer: signer}, nil
}

// Put copies from reader into the object path, replacing any existing object.
func (s *LocalStorage) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	target, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create object file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write object stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("commit object file: %w", err)
	}
	return nil
}

// Get returns a read-only handle for the stored object.
func (s *LocalStorage) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	target, err := s.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return file, nil
}

// Remove deletes the given keys; missing keys are ignored.
func (s *LocalStorage) Remove(ctx context.Context, bucket string, keys ...string) error {
	var failed []string
	for _, key := range keys {
		target, err := s.resolve(bucket, key)
		if err != nil {
			return err
		}
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			failed = append(failed, key)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("delete objects %s", strings.Join(failed, ", "))
	}
	return nil
}

// List returns objects under prefix, sorted by key.
func (s *LocalStorage) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	root := filepath.Join(s.baseDir, bucket)
	dir := root
	if prefix != "" {
		cleaned, err := CleanKey(prefix)
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(root, filepath.FromSlash(cleaned))
	}

	objects := make([]Object, 0)
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		objects = append(objects, Object{Key: key, Name: d.Name(), Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// PublicURL returns the unauthenticated download URL for an object in a public bucket.
func (s *LocalStorage) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/public/%s/%s", s.publicBaseURL, url.PathEscape(bucket), escapeKey(key))
}

// SignedURL returns a time-limited download URL served by the file handler.
func (s *LocalStorage) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if s.signer == nil {
		return "", fmt.Errorf("signed urls not configured")
	}
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(s.baseDir, bucket, filepath.FromSlash(cleaned))); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrObjectNotFound
		}
		return "", fmt.Errorf("stat object: %w", err)
	}
	token, _, err := s.signer.GenerateFor(bucket, cleaned, ttl)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/signed/%s", s.publicBaseURL, token), nil
}

func (s *LocalStorage) resolve(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || strings.HasPrefix(bucket, ".") {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, bucket, filepath.FromSlash(cleaned)), nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
