package repository

import (
	"context"
	"errors"

	"github.com/dtorrez/rentora-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository defines the interface for document number sequences
type SequenceRepository interface {
	Next(ctx context.Context, orgID uint, sequenceType string) (int64, error)
}

// sequenceRepository hands out strictly increasing document numbers per
// (org, sequence type). Next is meant to run inside the caller's
// transaction: the counter row stays locked until that transaction ends, so
// two concurrent callers never observe the same value, and a rollback
// releases the value together with the document that would have carried it.
type sequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

// Next reserves and returns the next value of the sequence, creating the
// counter row on first use.
func (r *sequenceRepository) Next(ctx context.Context, orgID uint, sequenceType string) (int64, error) {
	var seq models.NumberSequence

	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("org_id = ? AND sequence_type = ?", orgID, sequenceType).
		First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq = models.NumberSequence{OrgID: orgID, SequenceType: sequenceType}
		if createErr := r.db.WithContext(ctx).Create(&seq).Error; createErr != nil {
			if !isUniqueViolation(createErr) {
				return 0, createErr
			}
			// A concurrent caller created the row first; lock and use theirs.
			if err := r.db.WithContext(ctx).
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("org_id = ? AND sequence_type = ?", orgID, sequenceType).
				First(&seq).Error; err != nil {
				return 0, err
			}
		}
	} else if err != nil {
		return 0, err
	}

	seq.LastValue++
	err = r.db.WithContext(ctx).
		Model(&models.NumberSequence{}).
		Where("id = ?", seq.ID).
		Update("last_value", seq.LastValue).Error
	if err != nil {
		return 0, err
	}

	return seq.LastValue, nil
}
