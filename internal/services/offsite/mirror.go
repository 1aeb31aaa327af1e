package offsite

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

// Mirror runs replications in the background, one at a time.
type Mirror struct {
	svc    Service
	cfg    models.OffsiteConfig
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMirror creates a background mirror for cfg.
func NewMirror(logger zerolog.Logger, svc Service, cfg models.OffsiteConfig) *Mirror {
	ctx, cancel := context.WithCancel(context.Background())
	return &Mirror{
		svc:    svc,
		cfg:    cfg,
		logger: logger.With().Str("component", "mirror").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Enqueue schedules artifact for replication and returns immediately.
// Failures are logged only; the local artifact is unaffected.
func (m *Mirror) Enqueue(artifact models.BackupArtifact) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.mu.Lock()
		defer m.mu.Unlock()

		if m.ctx.Err() != nil {
			return
		}

		ctx := m.ctx
		if m.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
			defer cancel()
		}

		result, err := m.svc.Replicate(ctx, m.cfg, artifact)
		if err == nil && result != nil {
			err = result.Error
		}
		if err != nil {
			m.logger.Error().Err(err).Str("filename", artifact.Filename).Msg("Offsite replication failed")
		}
	}()
}

// Wait blocks until all queued replications have finished.
func (m *Mirror) Wait() {
	m.wg.Wait()
}

// Close cancels pending and running replications and waits for them.
func (m *Mirror) Close() {
	m.cancel()
	m.wg.Wait()
}
