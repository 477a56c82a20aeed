package lockstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// FileLockStore keeps one file per key in dir. The file holds the token and
// its modification time is the absolute expiry of the lock.
//
// Check-and-write runs under an flock(2) guard on a sibling file, so two
// processes can not both observe "no lock" and both write one.
type FileLockStore struct {
	dir        string
	now        func() time.Time
	retryDelay time.Duration
}

func NewFileLockStore(dir string, options ...Option) (*FileLockStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &FileLockStore{
		dir:        dir,
		now:        newSettings(options).now,
		retryDelay: 5 * time.Millisecond,
	}, nil
}

func (s *FileLockStore) path(key string) string {
	return filepath.Join(s.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".lock")
}

func (s *FileLockStore) guard(ctx context.Context, key string) (*flock.Flock, error) {
	guard := flock.New(s.path(key) + ".guard")
	locked, err := guard.TryLockContext(ctx, s.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock guard: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock guard: %s is busy", guard.Path())
	}
	return guard, nil
}

// current returns the token stored at path when it has not expired yet.
func (s *FileLockStore) current(path string) (token string, exists bool, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !info.ModTime().After(s.now()) {
		return "", true, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", true, err
	}
	return string(raw), true, nil
}

func (s *FileLockStore) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	guard, err := s.guard(ctx, key)
	if err != nil {
		return false, err
	}
	defer func() { _ = guard.Unlock() }()

	path := s.path(key)
	holder, exists, err := s.current(path)
	if err != nil {
		return false, err
	}
	if holder != "" && holder != token {
		return false, nil
	}

	if exists {
		err = s.replace(path, token)
	} else {
		err = s.create(path, token)
	}
	if errors.Is(err, fs.ErrExist) {
		// Created by a writer that bypassed the guard
		return false, nil
	}
	if err != nil {
		return false, err
	}

	expiry := s.now().Add(ttl)
	if err := os.Chtimes(path, expiry, expiry); err != nil {
		return false, fmt.Errorf("stamp lock expiry: %w", err)
	}
	return true, nil
}

func (s *FileLockStore) create(path, token string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(token); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// replace swaps the content of an existing lock file atomically.
func (s *FileLockStore) replace(path, token string) error {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(token); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *FileLockStore) Read(_ context.Context, key string) (string, error) {
	token, _, err := s.current(s.path(key))
	return token, err
}

func (s *FileLockStore) Release(ctx context.Context, key, token string) error {
	guard, err := s.guard(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = guard.Unlock() }()

	path := s.path(key)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if string(raw) != token {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

var _ contracts.LockStore = (*FileLockStore)(nil)
