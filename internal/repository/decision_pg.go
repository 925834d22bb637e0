package repository

import (
	"context"

	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"gorm.io/gorm"
)

// DecisionRepo persists the per-cycle audit trail.
type DecisionRepo struct {
	db *gorm.DB
}

func NewDecisionRepo(db *gorm.DB) (*DecisionRepo, error) {
	if err := db.AutoMigrate(&model.DecisionRecord{}); err != nil {
		return nil, err
	}
	return &DecisionRepo{db: db}, nil
}

func (r *DecisionRepo) Insert(ctx context.Context, rec *model.DecisionRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// List returns the most recent decisions, newest first. Symbol filter is
// optional.
func (r *DecisionRepo) List(ctx context.Context, symbol string, limit int) ([]model.DecisionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	var out []model.DecisionRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
