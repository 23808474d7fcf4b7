// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

// Package mapstore keeps each user's generated map artifacts in a scratch
// directory named after the session's user id:
//
//	<root>/<user_id>/<activity_id>.html
//	<root>/<user_id>/<activity_id>-elevation.<ext>
//
// Ids are validated before they become path elements, so no caller input
// can address a file outside root.
package mapstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tomtom215/stridemap/internal/logging"
	"github.com/tomtom215/stridemap/internal/metrics"
	"github.com/tomtom215/stridemap/internal/validation"
)

// ErrInvalidID is returned for user or activity ids that are not safe path elements.
var ErrInvalidID = errors.New("invalid map id")

// ErrNotFound is returned when the requested artifact does not exist.
var ErrNotFound = errors.New("map artifact not found")

const (
	dirPerm  = 0o750
	filePerm = 0o640
)

// Store manages artifacts under a root directory.
type Store struct {
	root string
}

// New creates root if needed and returns a Store for it.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve maps dir: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("create maps dir: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) userDir(userID string) (string, error) {
	if !validation.ValidVar(userID, "required,user_id") {
		return "", fmt.Errorf("%w: user %q", ErrInvalidID, userID)
	}
	return filepath.Join(s.root, userID), nil
}

func activityName(activityID int64) (string, error) {
	if activityID <= 0 {
		return "", fmt.Errorf("%w: activity %d", ErrInvalidID, activityID)
	}
	return strconv.FormatInt(activityID, 10), nil
}

// MapPath returns where the map for activityID lives.
func (s *Store) MapPath(userID string, activityID int64) (string, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return "", err
	}
	name, err := activityName(activityID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".html"), nil
}

func (s *Store) elevationPath(userID string, activityID int64, ext string) (string, error) {
	if !validation.ValidVar(ext, "required,oneof=png jpg svg") {
		return "", fmt.Errorf("%w: extension %q", ErrInvalidID, ext)
	}
	dir, err := s.userDir(userID)
	if err != nil {
		return "", err
	}
	name, err := activityName(activityID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+"-elevation."+ext), nil
}

// WriteMap renders the map through render into a temporary file and moves
// it into place only when render succeeds. A failed render leaves any
// previous artifact untouched.
func (s *Store) WriteMap(userID string, activityID int64, render func(io.Writer) error) error {
	path, err := s.MapPath(userID, activityID)
	if err != nil {
		return err
	}
	return writeAtomic(path, render)
}

// WriteElevation stores an elevation chart image with the given extension.
func (s *Store) WriteElevation(userID string, activityID int64, ext string, data []byte) error {
	path, err := s.elevationPath(userID, activityID, ext)
	if err != nil {
		return err
	}
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func writeAtomic(path string, render func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if err := render(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("move artifact into place: %w", err)
	}
	return nil
}

// HasMap reports whether the map artifact exists.
func (s *Store) HasMap(userID string, activityID int64) bool {
	path, err := s.MapPath(userID, activityID)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ElevationPath finds a stored elevation chart and returns its path and extension.
func (s *Store) ElevationPath(userID string, activityID int64, exts []string) (string, string, error) {
	for _, ext := range exts {
		path, err := s.elevationPath(userID, activityID, ext)
		if err != nil {
			return "", "", err
		}
		if _, err := os.Stat(path); err == nil {
			return path, ext, nil
		}
	}
	return "", "", ErrNotFound
}

// RemoveUser deletes the user's directory and everything in it. A missing
// directory is not an error.
func (s *Store) RemoveUser(userID string) error {
	dir, err := s.userDir(userID)
	if err != nil {
		return err
	}

	n := countFiles(dir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove user dir: %w", err)
	}
	metrics.RecordMapFilesRemoved("logout", n)
	return nil
}

// PruneExcept removes every user directory whose name is not in keep and
// returns how many directories went. Entries that are not directories are
// left alone. Failures are logged and skipped.
func (s *Store) PruneExcept(keep map[string]struct{}) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("read maps dir: %w", err)
	}

	log := logging.WithComponent("mapstore")
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := keep[entry.Name()]; ok {
			continue
		}

		dir := filepath.Join(s.root, entry.Name())
		n := countFiles(dir)
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", entry.Name()).Msg("Failed to prune user dir")
			continue
		}
		metrics.RecordMapFilesRemoved("expired", n)
		removed++
	}
	return removed, nil
}

func countFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}
