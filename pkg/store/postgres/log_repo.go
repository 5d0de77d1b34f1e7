package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/datamorph/datamorph/pkg/model"
	"github.com/datamorph/datamorph/pkg/store"
)

// LogRepository is the postgres-backed RunLogStore. Append order within a
// run is fixed by the auto-increment id; rows are insert-only.
type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Append(ctx context.Context, runID string, entry *model.LogEntry) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	entry.RunID = runID

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *LogRepository) ReadAll(ctx context.Context, runID string) ([]model.LogEntry, error) {
	var logs []model.LogEntry
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	if len(logs) == 0 {
		return nil, store.ErrRunNotFound
	}
	return logs, nil
}

func (r *LogRepository) ReadLatest(ctx context.Context, runID string) (*model.LogEntry, error) {
	var entry model.LogEntry
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrRunNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	return &entry, nil
}
