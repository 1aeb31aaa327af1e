// Package postgres provides PostgreSQL dump operations.
package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

// Service defines the interface for PostgreSQL dump operations.
type Service interface {
	Dump(ctx context.Context, cfg models.PostgresConfig, outputPath string) (*models.PostgresDumpResult, error)
}

// CommandExecutor allows mocking exec.Command in tests. It returns whatever
// the command wrote to stderr.
type CommandExecutor interface {
	ExecuteWithEnv(ctx context.Context, env []string, outputPath string, name string, args ...string) (string, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// ExecuteWithEnv runs the command with stdout written to a newly created
// outputPath. An existing file at outputPath is an error.
func (e *DefaultExecutor) ExecuteWithEnv(ctx context.Context, env []string, outputPath string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.WaitDelay = 5 * time.Second

	output, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // outputPath is controlled by caller
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = output.Close() }()

	var stderr bytes.Buffer
	cmd.Stdout = output
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stderr.String(), fmt.Errorf("pg_dump failed: %w: %s", err, msg)
		}
		return stderr.String(), fmt.Errorf("pg_dump failed: %w", err)
	}

	if err := output.Sync(); err != nil {
		return stderr.String(), fmt.Errorf("failed to flush output file: %w", err)
	}

	return stderr.String(), nil
}

// Impl implements the PostgreSQL Service interface.
type Impl struct {
	binary   string
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new PostgreSQL service running the pg_dump binary at binary.
func New(logger zerolog.Logger, binary string) *Impl {
	return NewWithExecutor(logger, binary, &DefaultExecutor{})
}

// NewWithExecutor creates a new PostgreSQL service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, binary string, executor CommandExecutor) *Impl {
	if binary == "" {
		binary = "pg_dump"
	}
	return &Impl{
		binary:   binary,
		executor: executor,
		logger:   logger.With().Str("component", "postgres").Logger(),
	}
}

// Dump writes a custom-format (-Fc) dump of the database to outputPath.
// Failures are reported in result.Error and the partial file is removed.
func (s *Impl) Dump(ctx context.Context, cfg models.PostgresConfig, outputPath string) (*models.PostgresDumpResult, error) {
	s.logger.Debug().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Str("output", outputPath).
		Msg("Starting PostgreSQL dump")

	start := time.Now()
	result := &models.PostgresDumpResult{
		OutputPath: outputPath,
	}

	args := []string{
		"-h", cfg.Host,
		"-p", strconv.Itoa(cfg.Port),
		"-U", cfg.Username,
		"-d", cfg.Database,
		"-Fc",
		"--no-password",
	}

	env := []string{}
	if cfg.Password != "" {
		env = append(env, fmt.Sprintf("PGPASSWORD=%s", cfg.Password))
	}
	if cfg.SSLMode != "" {
		env = append(env, fmt.Sprintf("PGSSLMODE=%s", cfg.SSLMode))
	}

	stderr, execErr := s.executor.ExecuteWithEnv(ctx, env, outputPath, s.binary, args...)
	result.Stderr = stderr
	if execErr != nil {
		if !errors.Is(execErr, os.ErrExist) {
			_ = os.Remove(outputPath)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			execErr = fmt.Errorf("%w (%w)", ctxErr, execErr)
		}
		result.Error = execErr
		result.Duration = time.Since(start)
		return result, nil //nolint:nilerr // error is stored in result struct by design
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		result.Error = fmt.Errorf("dump output missing: %w", err)
		result.Duration = time.Since(start)
		return result, nil
	}
	result.SizeBytes = info.Size()
	result.Duration = time.Since(start)

	s.logger.Info().
		Str("output", outputPath).
		Int64("size_bytes", result.SizeBytes).
		Dur("duration", result.Duration).
		Msg("PostgreSQL dump completed")

	return result, nil
}
