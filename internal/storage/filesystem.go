/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FilesystemStore implements ObjectStore under a local directory.
type FilesystemStore struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFilesystemStore creates a filesystem-based store rooted at rootDir.
func NewFilesystemStore(rootDir string, logger zerolog.Logger) *FilesystemStore {
	return &FilesystemStore{
		rootDir: rootDir,
		logger:  logger.With().Str("component", "storage_fs").Logger(),
	}
}

// Put writes data to key, creating parent directories. The file is written
// to a temporary name first so readers never see a partial export.
func (fs *FilesystemStore) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, err := cleanKey(key)
	if err != nil {
		return err
	}
	fullPath := filepath.Join(fs.rootDir, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename file: %w", err)
	}

	fs.logger.Debug().Str("path", fullPath).Int("bytes", len(data)).Msg("filesystem storage: object stored")
	return nil
}

// Get reads the object at key.
func (fs *FilesystemStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(fs.rootDir, filepath.FromSlash(rel)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Location returns the absolute file path for key.
func (fs *FilesystemStore) Location(key string) string {
	rel, err := cleanKey(key)
	if err != nil {
		return ""
	}
	full := filepath.Join(fs.rootDir, filepath.FromSlash(rel))
	if abs, err := filepath.Abs(full); err == nil {
		return abs
	}
	return full
}
