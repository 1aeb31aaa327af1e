package scheduler

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

type mockSettings struct {
	mu       sync.Mutex
	settings models.BackupSettings
	err      error
}

func (m *mockSettings) GetBackupSettings(_ context.Context) (*models.BackupSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettings) set(s models.BackupSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
}

type mockRunner struct {
	mu       sync.Mutex
	calls    []models.Trigger
	backupFn func(ctx context.Context, trigger models.Trigger) (*models.BackupArtifact, error)
}

func (m *mockRunner) RunBackup(ctx context.Context, trigger models.Trigger) (*models.BackupArtifact, error) {
	m.mu.Lock()
	m.calls = append(m.calls, trigger)
	m.mu.Unlock()
	if m.backupFn != nil {
		return m.backupFn(ctx, trigger)
	}
	return &models.BackupArtifact{Filename: "backup-2024-03-10T00-00-00-000Z.backup", SizeBytes: 42}, nil
}

func (m *mockRunner) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type memStore struct {
	mu        sync.Mutex
	artifacts map[string]time.Time
	deleteErr map[string]error
}

func newMemStore() *memStore {
	return &memStore{artifacts: map[string]time.Time{}, deleteErr: map[string]error{}}
}

func (m *memStore) add(name string, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[name] = createdAt
}

func (m *memStore) List() ([]models.BackupArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.BackupArtifact, 0, len(m.artifacts))
	for name, created := range m.artifacts {
		out = append(out, models.BackupArtifact{Filename: name, CreatedAt: created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) Delete(filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.deleteErr[filename]; ok {
		return err
	}
	if _, ok := m.artifacts[filename]; !ok {
		return models.ErrNotFound
	}
	delete(m.artifacts, filename)
	return nil
}

func (m *memStore) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name := range m.artifacts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func newTestScheduler(settings *mockSettings, runner *mockRunner, store *memStore) *Impl {
	cfg := models.BackupConfig{
		Location:      time.UTC,
		PollInterval:  10 * time.Millisecond,
		SweepInterval: time.Hour,
	}
	return New(zerolog.New(io.Discard), cfg, settings, runner, store)
}

func enabled(schedule string, retentionDays int) models.BackupSettings {
	return models.BackupSettings{
		AutoBackupEnabled: true,
		Schedule:          schedule,
		RetentionDays:     retentionDays,
		Destination:       models.DestinationLocal,
	}
}

func TestEvaluate_FiresOncePerMinute(t *testing.T) {
	settings := &mockSettings{settings: enabled("0 0 * * *", 30)}
	runner := &mockRunner{}
	s := newTestScheduler(settings, runner, newMemStore())
	ctx := context.Background()

	fired, err := s.Evaluate(ctx, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = s.Evaluate(ctx, time.Date(2024, 3, 10, 0, 0, 30, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, fired)

	assert.Equal(t, []models.Trigger{models.TriggerScheduled}, runner.calls)
}

func TestEvaluate_NotMatchingMinute(t *testing.T) {
	settings := &mockSettings{settings: enabled("0 0 * * *", 30)}
	runner := &mockRunner{}
	s := newTestScheduler(settings, runner, newMemStore())

	fired, err := s.Evaluate(context.Background(), time.Date(2024, 3, 10, 0, 1, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, 0, runner.count())
}

func TestEvaluate_EveryFifteenMinutes(t *testing.T) {
	settings := &mockSettings{settings: enabled("*/15 * * * *", 30)}
	runner := &mockRunner{}
	s := newTestScheduler(settings, runner, newMemStore())
	ctx := context.Background()

	fired, err := s.Evaluate(ctx, time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = s.Evaluate(ctx, time.Date(2024, 3, 10, 10, 31, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, fired)

	assert.Equal(t, 1, runner.count())
}

func TestEvaluate_DisabledNeverFires(t *testing.T) {
	s := enabled("* * * * *", 30)
	s.AutoBackupEnabled = false
	settings := &mockSettings{settings: s}
	runner := &mockRunner{}
	sched := newTestScheduler(settings, runner, newMemStore())

	fired, err := sched.Evaluate(context.Background(), time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, 0, runner.count())
}

func TestEvaluate_ScheduleChangeTakesEffect(t *testing.T) {
	settings := &mockSettings{settings: enabled("0 0 * * *", 30)}
	runner := &mockRunner{}
	s := newTestScheduler(settings, runner, newMemStore())
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)

	fired, err := s.Evaluate(ctx, at)
	require.NoError(t, err)
	assert.False(t, fired)

	settings.set(enabled("0 3 * * *", 30))

	fired, err = s.Evaluate(ctx, at.Add(10*time.Second))
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestEvaluate_InvalidStoredScheduleUsesLastValid(t *testing.T) {
	settings := &mockSettings{settings: enabled("0 0 * * *", 30)}
	runner := &mockRunner{}
	s := newTestScheduler(settings, runner, newMemStore())
	ctx := context.Background()

	_, err := s.Evaluate(ctx, time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	settings.set(enabled("bogus", 30))

	fired, err := s.Evaluate(ctx, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestEvaluate_InvalidScheduleWithoutFallback(t *testing.T) {
	settings := &mockSettings{settings: enabled("bogus", 30)}
	runner := &mockRunner{}
	s := newTestScheduler(settings, runner, newMemStore())

	fired, err := s.Evaluate(context.Background(), time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

	require.Error(t, err)
	assert.False(t, fired)
	assert.Equal(t, 0, runner.count())
}

func TestEvaluate_BackupFailureIsReturned(t *testing.T) {
	settings := &mockSettings{settings: enabled("0 0 * * *", 30)}
	runner := &mockRunner{
		backupFn: func(_ context.Context, _ models.Trigger) (*models.BackupArtifact, error) {
			return nil, &models.BackupExecutionError{Reason: "pg_dump exited with status 1"}
		},
	}
	s := newTestScheduler(settings, runner, newMemStore())
	ctx := context.Background()

	fired, err := s.Evaluate(ctx, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, fired)

	// The failed slot is not retried within the same minute.
	fired, err = s.Evaluate(ctx, time.Date(2024, 3, 10, 0, 0, 30, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, 1, runner.count())
}

func TestEvaluate_SettingsError(t *testing.T) {
	settings := &mockSettings{err: errors.New("connection refused")}
	s := newTestScheduler(settings, &mockRunner{}, newMemStore())

	_, err := s.Evaluate(context.Background(), time.Now())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEvaluate_UsesConfiguredLocation(t *testing.T) {
	settings := &mockSettings{settings: enabled("0 0 * * *", 30)}
	runner := &mockRunner{}
	cfg := models.BackupConfig{Location: time.FixedZone("WIB", 7*60*60)}
	s := New(zerolog.New(io.Discard), cfg, settings, runner, newMemStore())

	fired, err := s.Evaluate(context.Background(), time.Date(2024, 3, 9, 17, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.True(t, fired)
}

func TestSweepExpired(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	settings := &mockSettings{settings: enabled("0 0 * * *", 7)}
	store := newMemStore()
	store.add("backup-2024-03-10T12-00-00-000Z.backup", now.Add(-10*24*time.Hour))
	store.add("backup-2024-03-15T12-00-00-000Z.backup", now.Add(-5*24*time.Hour))
	store.add("backup-2024-03-19T12-00-00-000Z.backup", now.Add(-1*24*time.Hour))
	s := newTestScheduler(settings, &mockRunner{}, store)

	deleted, err := s.SweepExpired(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, []string{"backup-2024-03-10T12-00-00-000Z.backup"}, deleted)
	assert.Equal(t, []string{
		"backup-2024-03-15T12-00-00-000Z.backup",
		"backup-2024-03-19T12-00-00-000Z.backup",
	}, store.names())
}

func TestSweepExpired_ExactlyAtRetentionIsKept(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	settings := &mockSettings{settings: enabled("0 0 * * *", 7)}
	store := newMemStore()
	store.add("backup-2024-03-13T12-00-00-000Z.backup", now.Add(-7*24*time.Hour))
	s := newTestScheduler(settings, &mockRunner{}, store)

	deleted, err := s.SweepExpired(context.Background(), now)

	require.NoError(t, err)
	assert.Empty(t, deleted)
	assert.Len(t, store.names(), 1)
}

func TestSweepExpired_ContinuesPastFailures(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	settings := &mockSettings{settings: enabled("0 0 * * *", 1)}
	store := newMemStore()
	store.add("backup-2024-03-01T00-00-00-000Z.backup", now.Add(-19*24*time.Hour))
	store.add("backup-2024-03-02T00-00-00-000Z.backup", now.Add(-18*24*time.Hour))
	store.deleteErr["backup-2024-03-01T00-00-00-000Z.backup"] = errors.New("permission denied")
	s := newTestScheduler(settings, &mockRunner{}, store)

	deleted, err := s.SweepExpired(context.Background(), now)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, []string{"backup-2024-03-02T00-00-00-000Z.backup"}, deleted)
}

func TestSweepExpired_IgnoresAlreadyDeleted(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	settings := &mockSettings{settings: enabled("0 0 * * *", 1)}
	store := newMemStore()
	store.add("backup-2024-03-01T00-00-00-000Z.backup", now.Add(-19*24*time.Hour))
	store.deleteErr["backup-2024-03-01T00-00-00-000Z.backup"] = models.ErrNotFound
	s := newTestScheduler(settings, &mockRunner{}, store)

	deleted, err := s.SweepExpired(context.Background(), now)

	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestNextRun(t *testing.T) {
	settings := &mockSettings{settings: enabled("0 2 * * *", 30)}
	s := newTestScheduler(settings, &mockRunner{}, newMemStore())

	next, err := s.NextRun(context.Background(), time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.NotNil(t, next)
	assert.True(t, next.Equal(time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC)))
}

func TestNextRun_Disabled(t *testing.T) {
	s := enabled("0 2 * * *", 30)
	s.AutoBackupEnabled = false
	sched := newTestScheduler(&mockSettings{settings: s}, &mockRunner{}, newMemStore())

	next, err := sched.NextRun(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestRun_StopsOnCancel(t *testing.T) {
	settings := &mockSettings{settings: enabled("* * * * *", 30)}
	runner := &mockRunner{}
	s := newTestScheduler(settings, runner, newMemStore())
	s.clock = func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	// Fixed clock: the same minute never fires twice.
	assert.Equal(t, 1, runner.count())
}

func TestScheduledBackupsAndRetention(t *testing.T) {
	// Daily backups at midnight with a 7 day retention: after ten days only
	// the artifacts of the last seven days remain.
	settings := &mockSettings{settings: enabled("0 0 * * *", 7)}
	store := newMemStore()
	var clock time.Time
	runner := &mockRunner{
		backupFn: func(_ context.Context, _ models.Trigger) (*models.BackupArtifact, error) {
			name := "backup-" + clock.Format("2006-01-02") + "T00-00-00-000Z.backup"
			store.add(name, clock)
			return &models.BackupArtifact{Filename: name, CreatedAt: clock}, nil
		},
	}
	s := newTestScheduler(settings, runner, store)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 10; day++ {
		for tick := 0; tick < 4; tick++ {
			clock = start.AddDate(0, 0, day).Add(time.Duration(tick) * 20 * time.Second)
			_, err := s.Evaluate(ctx, clock)
			require.NoError(t, err)
		}
		_, err := s.SweepExpired(ctx, start.AddDate(0, 0, day).Add(12*time.Hour))
		require.NoError(t, err)
	}

	assert.Equal(t, 10, runner.count())
	assert.Equal(t, []string{
		"backup-2024-03-04T00-00-00-000Z.backup",
		"backup-2024-03-05T00-00-00-000Z.backup",
		"backup-2024-03-06T00-00-00-000Z.backup",
		"backup-2024-03-07T00-00-00-000Z.backup",
		"backup-2024-03-08T00-00-00-000Z.backup",
		"backup-2024-03-09T00-00-00-000Z.backup",
		"backup-2024-03-10T00-00-00-000Z.backup",
	}, store.names())
}
