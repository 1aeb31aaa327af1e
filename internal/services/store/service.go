// Package store manages backup artifacts in the local backup directory.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

const partialPrefix = ".partial-"

// LockName is the lock file guarding dumps into the backup directory. It is
// shared by every process using the same directory.
const LockName = ".backup.lock"

// Service defines the interface for artifact storage.
type Service interface {
	List() ([]models.BackupArtifact, error)
	Stat(filename string) (*models.BackupArtifact, error)
	Open(filename string) (*os.File, *models.BackupArtifact, error)
	Delete(filename string) error
	TempPath(filename string) (string, error)
	Commit(tempPath, filename string) (*models.BackupArtifact, error)
}

// Impl implements Service on a single directory.
type Impl struct {
	dir    string
	logger zerolog.Logger
}

// New creates the backup directory if needed and returns a store rooted at it.
func New(logger zerolog.Logger, dir string) (*Impl, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving backup directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	return &Impl{
		dir:    abs,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// Dir returns the absolute backup directory.
func (s *Impl) Dir() string {
	return s.dir
}

// List returns all artifacts, newest first. Files that are not artifacts are
// ignored.
func (s *Impl) List() ([]models.BackupArtifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	artifacts := make([]models.BackupArtifact, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || ValidateFilename(entry.Name()) != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		artifacts = append(artifacts, s.artifact(entry.Name(), info))
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].Filename > artifacts[j].Filename
		}
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})

	return artifacts, nil
}

// Stat returns the metadata of one artifact.
func (s *Impl) Stat(filename string) (*models.BackupArtifact, error) {
	path, err := s.path(filename)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, filename)
		}
		return nil, fmt.Errorf("stat %s: %w", filename, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, filename)
	}

	artifact := s.artifact(filename, info)
	return &artifact, nil
}

// Open opens an artifact for reading. The caller closes the file.
func (s *Impl) Open(filename string) (*os.File, *models.BackupArtifact, error) {
	artifact, err := s.Stat(filename)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(artifact.StoragePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", models.ErrNotFound, filename)
		}
		return nil, nil, fmt.Errorf("opening %s: %w", filename, err)
	}
	return f, artifact, nil
}

// Delete removes an artifact. Deleting a missing artifact returns ErrNotFound.
func (s *Impl) Delete(filename string) error {
	path, err := s.path(filename)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", models.ErrNotFound, filename)
		}
		return fmt.Errorf("deleting %s: %w", filename, err)
	}

	s.logger.Info().Str("filename", filename).Msg("Deleted backup artifact")
	return nil
}

// TempPath returns the hidden path a dump for filename is written to before
// Commit. Partial files never show up in List.
func (s *Impl) TempPath(filename string) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, partialPrefix+filename), nil
}

// Commit moves a finished dump to its final name. An existing artifact is
// never replaced: the temp file is hard-linked to the final name, which fails
// if the name is taken, and only then unlinked.
func (s *Impl) Commit(tempPath, filename string) (*models.BackupArtifact, error) {
	path, err := s.path(filename)
	if err != nil {
		return nil, err
	}

	if err := os.Link(tempPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrArtifactExists, filename)
		}
		return nil, fmt.Errorf("committing %s: %w", filename, err)
	}
	if err := os.Remove(tempPath); err != nil {
		s.logger.Warn().Err(err).Str("path", tempPath).Msg("Failed to remove partial dump after commit")
	}

	return s.Stat(filename)
}

// Lock takes the directory lock without waiting. It fails with
// ErrBackupInProgress while another holder, in this or any other process,
// has it.
func (s *Impl) Lock() (unlock func(), err error) {
	lock := flock.New(filepath.Join(s.dir, LockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking backup directory: %w", err)
	}
	if !ok {
		return nil, models.ErrBackupInProgress
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to release backup directory lock")
		}
	}, nil
}

// Cleanup removes leftover partial files, e.g. after a crash during a dump.
// Nothing is removed while a dump holds the directory lock.
func (s *Impl) Cleanup() error {
	unlock, err := s.Lock()
	if errors.Is(err, models.ErrBackupInProgress) {
		s.logger.Info().Msg("Backup in progress, skipping partial dump cleanup")
		return nil
	}
	if err != nil {
		return err
	}
	defer unlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, partialPrefix+"*"))
	if err != nil {
		return fmt.Errorf("listing partial dumps: %w", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		s.logger.Info().Str("path", path).Msg("Removed leftover partial dump")
	}
	return nil
}

func (s *Impl) path(filename string) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, filename), nil
}

func (s *Impl) artifact(filename string, info fs.FileInfo) models.BackupArtifact {
	createdAt, err := CreatedAtFromFilename(filename)
	if err != nil {
		createdAt = info.ModTime().UTC()
	}
	return models.BackupArtifact{
		Filename:    filename,
		SizeBytes:   info.Size(),
		CreatedAt:   createdAt,
		StoragePath: filepath.Join(s.dir, filename),
	}
}
