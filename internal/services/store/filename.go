package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

const (
	filenamePrefix = "backup-"
	filenameSuffix = ".backup"
	stampLayout    = "2006-01-02T15-04-05"
)

var filenameRegex = regexp.MustCompile(`^backup-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z\.backup$`)

// FilenameFor returns the artifact filename for a backup started at t, e.g.
// backup-2024-03-15T08-00-00-000Z.backup.
func FilenameFor(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return filenamePrefix + stamp + filenameSuffix
}

// ValidateFilename rejects anything that is not a plain artifact filename.
func ValidateFilename(name string) error {
	if !filenameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", models.ErrInvalidFilename, name)
	}
	return nil
}

// CreatedAtFromFilename decodes the UTC creation time embedded in a valid
// artifact filename.
func CreatedAtFromFilename(name string) (time.Time, error) {
	if err := ValidateFilename(name); err != nil {
		return time.Time{}, err
	}

	// backup-2024-03-15T08-00-00-000Z.backup
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filenamePrefix), "Z"+filenameSuffix)
	t, err := time.ParseInLocation(stampLayout, stamp[:len(stampLayout)], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp of %s: %w", name, err)
	}
	millis, err := strconv.Atoi(stamp[len(stampLayout)+1:])
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing milliseconds of %s: %w", name, err)
	}
	return t.Add(time.Duration(millis) * time.Millisecond), nil
}
