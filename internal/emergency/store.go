package emergency

import (
	"context"

	"gorm.io/gorm"

	"Lifeline/internal/models"
	errs "Lifeline/pkg/errors"
)

// Store is the gorm-backed Emergency Record Store. Writes are append-only;
// the core never updates or deletes records, retention is an external policy.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the schema and returns the store.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&models.Emergency{}); err != nil {
		return nil, errs.Wrap(err, "emergency schema migration failed")
	}
	return &Store{db: db}, nil
}

// Save appends one emergency record. The caller decides what a failure
// means; Save itself only reports it.
func (s *Store) Save(ctx context.Context, rec *models.Emergency) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return errs.Persistence(err)
	}
	return nil
}

// Recent returns the newest records where userID is the sender or the
// receiver, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]models.Emergency, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []models.Emergency
	err := s.db.WithContext(ctx).
		Where("user_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errs.Wrap(err, "emergency query failed")
	}
	return records, nil
}

// GetByID fetches a single record.
func (s *Store) GetByID(ctx context.Context, id uint) (*models.Emergency, error) {
	var rec models.Emergency
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
