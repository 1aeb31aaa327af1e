package settings

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

var testUpdatedAt = time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

func backupRow(s models.BackupSettings) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*dest[0].(*bool) = s.AutoBackupEnabled
		*dest[1].(*string) = s.Schedule
		*dest[2].(*int) = s.RetentionDays
		*dest[3].(*string) = s.Destination
		*dest[4].(*time.Time) = testUpdatedAt
		return nil
	}}
}

func resetRow(s models.ResetSettings) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*dest[0].(*string) = s.ConfirmationCode
		*dest[1].(*bool) = s.PreserveMasterData
		*dest[2].(*time.Time) = testUpdatedAt
		return nil
	}}
}

func backupDefaults() models.BackupSettings {
	return models.BackupSettings{Schedule: "0 0 * * *", RetentionDays: 30}
}

func resetDefaults() models.ResetSettings {
	return models.ResetSettings{ConfirmationCode: "RESET", PreserveMasterData: true}
}

func newTestService(database *mockDB) *Impl {
	return New(zerolog.New(io.Discard), database, backupDefaults(), resetDefaults())
}

// ---------- Backup settings ----------

func TestGetBackupSettings_Existing(t *testing.T) {
	database := &mockDB{}
	svc := newTestService(database)
	ctx := context.Background()

	stored := models.BackupSettings{AutoBackupEnabled: true, Schedule: "0 3 * * *", RetentionDays: 7, Destination: "local"}
	database.On("QueryRow", ctx, selectBackupSettings, mock.Anything).Return(backupRow(stored))

	out, err := svc.GetBackupSettings(ctx)

	require.NoError(t, err)
	assert.True(t, out.AutoBackupEnabled)
	assert.Equal(t, "0 3 * * *", out.Schedule)
	assert.Equal(t, 7, out.RetentionDays)
	assert.Equal(t, testUpdatedAt, out.UpdatedAt)
	database.AssertExpectations(t)
	database.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetBackupSettings_CreatesDefaultsOnFirstAccess(t *testing.T) {
	database := &mockDB{}
	svc := newTestService(database)
	ctx := context.Background()

	database.On("QueryRow", ctx, selectBackupSettings, mock.Anything).Return(errRow(pgx.ErrNoRows)).Once()
	database.On("Exec", ctx, insertBackupDefaults, []any{false, "0 0 * * *", 30, "local"}).Return(pgconn.CommandTag{}, nil).Once()
	database.On("QueryRow", ctx, selectBackupSettings, mock.Anything).Return(backupRow(models.BackupSettings{
		Schedule: "0 0 * * *", RetentionDays: 30, Destination: "local",
	})).Once()

	out, err := svc.GetBackupSettings(ctx)

	require.NoError(t, err)
	assert.False(t, out.AutoBackupEnabled)
	assert.Equal(t, "0 0 * * *", out.Schedule)
	assert.Equal(t, 30, out.RetentionDays)
	assert.Equal(t, models.DestinationLocal, out.Destination)
	database.AssertExpectations(t)
}

func TestGetBackupSettings_QueryError(t *testing.T) {
	database := &mockDB{}
	svc := newTestService(database)
	ctx := context.Background()

	database.On("QueryRow", ctx, selectBackupSettings, mock.Anything).Return(errRow(errors.New("connection reset")))

	_, err := svc.GetBackupSettings(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "get backup settings")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGetBackupSettings_InsertDefaultsError(t *testing.T) {
	database := &mockDB{}
	svc := newTestService(database)
	ctx := context.Background()

	database.On("QueryRow", ctx, selectBackupSettings, mock.Anything).Return(errRow(pgx.ErrNoRows))
	database.On("Exec", ctx, insertBackupDefaults, mock.Anything).Return(pgconn.CommandTag{}, errors.New("permission denied"))

	_, err := svc.GetBackupSettings(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert default backup settings")
}

func TestSaveBackupSettings_Success(t *testing.T) {
	database := &mockDB{}
	svc := newTestService(database)
	ctx := context.Background()

	in := models.BackupSettings{AutoBackupEnabled: true, Schedule: "  */15 * * * *  ", RetentionDays: 14}
	saved := models.BackupSettings{AutoBackupEnabled: true, Schedule: "*/15 * * * *", RetentionDays: 14, Destination: "local"}
	database.On("QueryRow", ctx, upsertBackupSettings, []any{true, "*/15 * * * *", 14, "local"}).Return(backupRow(saved))

	out, err := svc.SaveBackupSettings(ctx, in)

	require.NoError(t, err)
	assert.Equal(t, "*/15 * * * *", out.Schedule)
	assert.Equal(t, 14, out.RetentionDays)
	assert.Equal(t, testUpdatedAt, out.UpdatedAt)
	database.AssertExpectations(t)
}

func TestSaveBackupSettings_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		in    models.BackupSettings
		field string
	}{
		{name: "invalid cron", in: models.BackupSettings{Schedule: "every day", RetentionDays: 7}, field: "schedule"},
		{name: "descriptor", in: models.BackupSettings{Schedule: "@hourly", RetentionDays: 7}, field: "schedule"},
		{name: "empty schedule", in: models.BackupSettings{Schedule: "", RetentionDays: 7}, field: "schedule"},
		{name: "retention zero", in: models.BackupSettings{Schedule: "0 0 * * *", RetentionDays: 0}, field: "retention_days"},
		{name: "retention too long", in: models.BackupSettings{Schedule: "0 0 * * *", RetentionDays: 366}, field: "retention_days"},
		{name: "unknown destination", in: models.BackupSettings{Schedule: "0 0 * * *", RetentionDays: 7, Destination: "s3"}, field: "destination"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := &mockDB{}
			svc := newTestService(database)

			_, err := svc.SaveBackupSettings(context.Background(), tt.in)

			var vErr *models.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			database.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSaveBackupSettings_RetentionBounds(t *testing.T) {
	for _, days := range []int{MinRetentionDays, MaxRetentionDays} {
		assert.NoError(t, ValidateBackupSettings(models.BackupSettings{
			Schedule: "0 0 * * *", RetentionDays: days, Destination: models.DestinationLocal,
		}))
	}
}

func TestSaveBackupSettings_DBError(t *testing.T) {
	database := &mockDB{}
	svc := newTestService(database)
	ctx := context.Background()

	database.On("QueryRow", ctx, upsertBackupSettings, mock.Anything).Return(errRow(errors.New("db error")))

	_, err := svc.SaveBackupSettings(ctx, backupDefaults())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "save backup settings")
}

func TestSaveBackupSettings_ConcurrentSavesAreSerialized(t *testing.T) {
	database := &mockDB{}
	svc := newTestService(database)
	ctx := context.Background()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	database.On("QueryRow", ctx, upsertBackupSettings, mock.Anything).Return(&mockRow{scanFunc: func(dest ...any) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return backupRow(backupDefaults()).Scan(dest...)
	}})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.SaveBackupSettings(ctx, backupDefaults())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
}

// ---------- Reset settings ----------

func TestGetResetSettings_CreatesDefaultsOnFirstAccess(t *testing.T) {
	database := &mockDB{}
	svc := newTestService(database)
	ctx := context.Background()

	database.On("QueryRow", ctx, selectResetSettings, mock.Anything).Return(errRow(pgx.ErrNoRows)).Once()
	database.On("Exec", ctx, insertResetDefaults, []any{"RESET", true}).Return(pgconn.CommandTag{}, nil).Once()
	database.On("QueryRow", ctx, selectResetSettings, mock.Anything).Return(resetRow(resetDefaults())).Once()

	out, err := svc.GetResetSettings(ctx)

	require.NoError(t, err)
	assert.Equal(t, "RESET", out.ConfirmationCode)
	assert.True(t, out.PreserveMasterData)
	database.AssertExpectations(t)
}

func TestGetResetSettings_Existing(t *testing.T) {
	database := &mockDB{}
	svc := newTestService(database)
	ctx := context.Background()

	database.On("QueryRow", ctx, selectResetSettings, mock.Anything).Return(resetRow(models.ResetSettings{ConfirmationCode: "HAPUS"}))

	out, err := svc.GetResetSettings(ctx)

	require.NoError(t, err)
	assert.Equal(t, "HAPUS", out.ConfirmationCode)
	assert.False(t, out.PreserveMasterData)
}

func TestSaveResetSettings_Success(t *testing.T) {
	database := &mockDB{}
	svc := newTestService(database)
	ctx := context.Background()

	database.On("QueryRow", ctx, upsertResetSettings, []any{"HAPUS SEMUA", false}).
		Return(resetRow(models.ResetSettings{ConfirmationCode: "HAPUS SEMUA"}))

	out, err := svc.SaveResetSettings(ctx, models.ResetSettings{ConfirmationCode: " HAPUS SEMUA "})

	require.NoError(t, err)
	assert.Equal(t, "HAPUS SEMUA", out.ConfirmationCode)
	database.AssertExpectations(t)
}

func TestSaveResetSettings_Validation(t *testing.T) {
	database := &mockDB{}
	svc := newTestService(database)

	_, err := svc.SaveResetSettings(context.Background(), models.ResetSettings{ConfirmationCode: "   "})

	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "confirmation_code", vErr.Field)

	long := make([]byte, maxConfirmationCodeLen+1)
	for i := range long {
		long[i] = 'X'
	}
	_, err = svc.SaveResetSettings(context.Background(), models.ResetSettings{ConfirmationCode: string(long)})
	require.ErrorAs(t, err, &vErr)

	database.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
}
