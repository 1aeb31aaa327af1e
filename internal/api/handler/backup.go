package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/api/request"
	"github.com/sutaaa0/cashier-app-sub000/internal/api/response"
	"github.com/sutaaa0/cashier-app-sub000/internal/metrics"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

// BackupSettingsService reads and writes the backup settings.
type BackupSettingsService interface {
	GetBackupSettings(ctx context.Context) (*models.BackupSettings, error)
	SaveBackupSettings(ctx context.Context, s models.BackupSettings) (*models.BackupSettings, error)
}

// BackupRunner runs a backup on demand.
type BackupRunner interface {
	RunBackup(ctx context.Context, trigger models.Trigger) (*models.BackupArtifact, error)
	Running() bool
}

// ArtifactStore lists, streams and deletes artifacts.
type ArtifactStore interface {
	List() ([]models.BackupArtifact, error)
	Open(filename string) (*os.File, *models.BackupArtifact, error)
	Delete(filename string) error
}

// ScheduleInfo predicts the next scheduled backup.
type ScheduleInfo interface {
	NextRun(ctx context.Context, now time.Time) (*time.Time, error)
}

type Backup struct {
	settings BackupSettingsService
	runner   BackupRunner
	store    ArtifactStore
	schedule ScheduleInfo
	clock    func() time.Time
}

func NewBackup(settings BackupSettingsService, runner BackupRunner, store ArtifactStore, schedule ScheduleInfo) *Backup {
	return &Backup{
		settings: settings,
		runner:   runner,
		store:    store,
		schedule: schedule,
		clock:    time.Now,
	}
}

type saveBackupSettingsResponse struct {
	Message  string                 `json:"message"`
	Settings *models.BackupSettings `json:"settings"`
}

// GetSettings handles GET /backup/settings.
func (h *Backup) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetBackupSettings(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, settings)
}

// SaveSettings handles PUT /backup/settings.
func (h *Backup) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var req request.SaveBackupSettings
	if err := request.Decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	destination := req.Destination
	if destination == "" {
		destination = models.DestinationLocal
	}

	saved, err := h.settings.SaveBackupSettings(r.Context(), models.BackupSettings{
		AutoBackupEnabled: *req.AutoBackupEnabled,
		Schedule:          req.Schedule,
		RetentionDays:     req.RetentionDays,
		Destination:       destination,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, saveBackupSettingsResponse{
		Message:  "backup settings saved",
		Settings: saved,
	})
}

// ListArtifacts handles GET /backup/artifacts.
func (h *Backup) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.store.List()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if artifacts == nil {
		artifacts = []models.BackupArtifact{}
	}
	response.WriteJSON(w, http.StatusOK, artifacts)
}

// CreateArtifact handles POST /backup/artifacts: it runs a manual backup and
// streams the new file back.
func (h *Backup) CreateArtifact(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.runner.RunBackup(r.Context(), models.TriggerManual)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.serve(w, r, artifact.Filename)
}

// DownloadArtifact handles GET /backup/artifacts/{filename}.
func (h *Backup) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	filename, err := filenameParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.serve(w, r, filename)
}

// DeleteArtifact handles DELETE /backup/artifacts/{filename}.
func (h *Backup) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	filename, err := filenameParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.store.Delete(filename); err != nil {
		writeServiceError(w, r, err)
		return
	}
	metrics.ArtifactDeleted(metrics.ReasonUser)

	response.WriteMessage(w, "backup deleted")
}

// Status handles GET /backup/status.
func (h *Backup) Status(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetBackupSettings(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	artifacts, err := h.store.List()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := models.BackupStatus{
		Settings:      *settings,
		Running:       h.runner.Running(),
		ArtifactCount: len(artifacts),
	}
	for _, a := range artifacts {
		status.TotalSizeBytes += a.SizeBytes
	}
	if len(artifacts) > 0 {
		latest := artifacts[0]
		status.LatestArtifact = &latest
	}

	next, err := h.schedule.NextRun(r.Context(), h.clock())
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Could not compute next scheduled backup")
	}
	status.NextRun = next

	response.WriteJSON(w, http.StatusOK, status)
}

func (h *Backup) serve(w http.ResponseWriter, r *http.Request, filename string) {
	f, artifact, err := h.store.Open(filename)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	http.ServeContent(w, r, artifact.Filename, artifact.CreatedAt, f)
}

// filenameParam returns the unescaped {filename} route parameter.
func filenameParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "filename")
	filename, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidFilename, raw)
	}
	return filename, nil
}
