// File: services/availability/service.go
package availability

import (
	"context"
	"fmt"
	"time"

	"lessonhub/database/repository"
	"lessonhub/models"
	"lessonhub/utils"

	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// AvailabilityService defines operations over instructor availability rows.
type AvailabilityService interface {
	UpsertWeek(ctx context.Context, instructorID string, days []models.DayWindows) (int, error)
	GetRange(ctx context.Context, instructorID, startDate, endDate string) ([]models.DayWindows, error)
	GetWeek(ctx context.Context, instructorID, anyDate string) ([]models.DayWindows, error)
	BackfillFromCurrentWeek(ctx context.Context, instructorID string, days int) (int, error)
	PurgeExpired(ctx context.Context) (int, error)
}

// DefaultAvailabilityService is the production implementation.
type DefaultAvailabilityService struct {
	Repo   repository.AvailabilityRepository
	Cache  *utils.Cache
	Logger *zap.Logger

	// RetentionDays bounds how far back purged rows are kept; <= 0 uses the
	// 90-day default.
	RetentionDays int

	// Now is swappable in tests; defaults to time.Now.
	Now func() time.Time
}

func (s *DefaultAvailabilityService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// weekStart returns the Monday on or before t, normalized to a date string.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
}

func weekCacheKey(instructorID string, monday time.Time) string {
	return utils.AvailabilityCachePrefix + instructorID + ":" + monday.Format(dateLayout)
}

// UpsertWeek replaces whole-day bitsets for the given dates, last-write-wins
// per date, and invalidates the read cache for every touched week.
func (s *DefaultAvailabilityService) UpsertWeek(ctx context.Context, instructorID string, days []models.DayWindows) (int, error) {
	rows := make([]models.AvailabilityDay, 0, len(days))
	touchedWeeks := make(map[string]struct{})
	for _, d := range days {
		date, err := time.Parse(dateLayout, d.Date)
		if err != nil {
			return 0, fmt.Errorf("invalid date %q: %w", d.Date, err)
		}
		bits, err := EncodeWindows(d.Windows)
		if err != nil {
			return 0, err
		}
		rows = append(rows, models.AvailabilityDay{
			InstructorID: instructorID,
			Date:         d.Date,
			Bits:         bits,
		})
		touchedWeeks[weekCacheKey(instructorID, weekStart(date))] = struct{}{}
	}

	written, err := s.Repo.UpsertDays(ctx, instructorID, rows)
	if err != nil {
		return 0, err
	}

	if s.Cache != nil {
		keys := make([]string, 0, len(touchedWeeks))
		for k := range touchedWeeks {
			keys = append(keys, k)
		}
		if err := s.Cache.Invalidate(ctx, keys...); err != nil {
			s.Logger.Warn("failed to invalidate availability cache", zap.Error(err))
		}
	}
	return written, nil
}

// GetRange returns decoded windows for the inclusive date range.
func (s *DefaultAvailabilityService) GetRange(ctx context.Context, instructorID, startDate, endDate string) ([]models.DayWindows, error) {
	rows, err := s.Repo.GetRange(ctx, instructorID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	out := make([]models.DayWindows, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DayWindows{Date: row.Date, Windows: DecodeBits(row.Bits)})
	}
	return out, nil
}

// GetWeek returns the decoded week containing anyDate, served through the
// read cache.
func (s *DefaultAvailabilityService) GetWeek(ctx context.Context, instructorID, anyDate string) ([]models.DayWindows, error) {
	date, err := time.Parse(dateLayout, anyDate)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", anyDate, err)
	}
	monday := weekStart(date)
	sunday := monday.AddDate(0, 0, 6)

	if s.Cache == nil {
		return s.GetRange(ctx, instructorID, monday.Format(dateLayout), sunday.Format(dateLayout))
	}

	var week []models.DayWindows
	err = s.Cache.GetOrCompute(ctx, weekCacheKey(instructorID, monday), utils.AvailabilityCacheTTL, &week, func() (interface{}, error) {
		return s.GetRange(ctx, instructorID, monday.Format(dateLayout), sunday.Format(dateLayout))
	})
	if err != nil {
		return nil, err
	}
	return week, nil
}

// BackfillFromCurrentWeek copies the current week's per-weekday bitsets into
// prior weeks, working backward, only for days missing from a week that has
// fewer than 7 populated days. A fully-populated historical week is never
// touched. Returns the number of rows written.
func (s *DefaultAvailabilityService) BackfillFromCurrentWeek(ctx context.Context, instructorID string, days int) (int, error) {
	if days < 7 {
		return 0, nil
	}
	monday := weekStart(s.now())
	sunday := monday.AddDate(0, 0, 6)

	// Template: the current week's bits per weekday offset.
	current, err := s.Repo.GetRange(ctx, instructorID, monday.Format(dateLayout), sunday.Format(dateLayout))
	if err != nil {
		return 0, err
	}
	if len(current) == 0 {
		return 0, nil
	}
	template := make(map[int][]byte, len(current))
	for _, row := range current {
		d, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			continue
		}
		template[int(d.Sub(monday).Hours()/24)] = row.Bits
	}

	// The horizon rounds down to week boundaries and includes the current
	// week, so days=28 covers exactly 3 prior weeks.
	priorWeeks := days/7 - 1

	written := 0
	for w := 1; w <= priorWeeks; w++ {
		target := monday.AddDate(0, 0, -7*w)
		targetEnd := target.AddDate(0, 0, 6)
		existing, err := s.Repo.GetRange(ctx, instructorID, target.Format(dateLayout), targetEnd.Format(dateLayout))
		if err != nil {
			return written, err
		}
		if len(existing) >= 7 {
			continue
		}
		populated := make(map[string]struct{}, len(existing))
		for _, row := range existing {
			populated[row.Date] = struct{}{}
		}

		var fill []models.AvailabilityDay
		for offset := 0; offset < 7; offset++ {
			bits, ok := template[offset]
			if !ok {
				continue
			}
			date := target.AddDate(0, 0, offset).Format(dateLayout)
			if _, exists := populated[date]; exists {
				continue
			}
			fill = append(fill, models.AvailabilityDay{
				InstructorID: instructorID,
				Date:         date,
				Bits:         bits,
			})
		}
		if len(fill) == 0 {
			continue
		}
		n, err := s.Repo.UpsertDays(ctx, instructorID, fill)
		if err != nil {
			return written, err
		}
		written += n
		if s.Cache != nil {
			if err := s.Cache.Invalidate(ctx, weekCacheKey(instructorID, target)); err != nil {
				s.Logger.Warn("failed to invalidate backfilled week", zap.Error(err))
			}
		}
	}

	s.Logger.Info("availability backfill finished",
		zap.String("instructorId", instructorID),
		zap.Int("days", days),
		zap.Int("rowsWritten", written),
	)
	return written, nil
}

const defaultRetentionDays = 90

// PurgeExpired deletes availability rows older than the retention horizon.
// The purge is the only deleter of availability rows; per-day writes only
// ever replace.
func (s *DefaultAvailabilityService) PurgeExpired(ctx context.Context) (int, error) {
	retention := s.RetentionDays
	if retention <= 0 {
		retention = defaultRetentionDays
	}
	cutoff := s.now().UTC().AddDate(0, 0, -retention).Format(dateLayout)
	deleted, err := s.Repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("availability purge failed: %w", err)
	}
	if deleted > 0 {
		s.Logger.Info("availability retention purge finished",
			zap.String("cutoff", cutoff),
			zap.Int("rowsDeleted", deleted),
		)
	}
	return deleted, nil
}
