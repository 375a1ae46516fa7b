package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/arhamfareed106/medusa-payment-backend/models"
)

const defaultAttemptLimit = 50

type AttemptRepository interface {
	Record(ctx context.Context, attempt *models.ReconciliationAttempt) error
	ListRecent(ctx context.Context, outcome models.ReconciliationOutcome, limit int) ([]models.ReconciliationAttempt, error)
}

type gormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) AttemptRepository {
	return &gormAttemptRepo{db: db}
}

func (r *gormAttemptRepo) Record(ctx context.Context, attempt *models.ReconciliationAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

// ListRecent returns the newest attempts first. An empty outcome lists all.
func (r *gormAttemptRepo) ListRecent(ctx context.Context, outcome models.ReconciliationOutcome, limit int) ([]models.ReconciliationAttempt, error) {
	if limit <= 0 {
		limit = defaultAttemptLimit
	}
	q := r.db.WithContext(ctx).Model(&models.ReconciliationAttempt{})
	if outcome != "" {
		q = q.Where("outcome = ?", outcome)
	}

	var attempts []models.ReconciliationAttempt
	if err := q.Order("id DESC").Limit(limit).Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}
