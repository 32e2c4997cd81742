package audit

import (
	"context"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
)

// Writer persists audit batches.
type Writer interface {
	SaveGaps(ctx context.Context, gaps []GapRecord) error
	SaveIncompletes(ctx context.Context, incompletes []IncompleteRecord) error
}

// Store writes audit rows through gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the audit tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&GapRecord{}, &IncompleteRecord{}); err != nil {
		return errors.Wrap(err, "migrate audit tables")
	}
	return nil
}

func (s *Store) SaveGaps(ctx context.Context, gaps []GapRecord) error {
	if len(gaps) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&gaps).Error; err != nil {
		return errors.Wrapf(err, "save %d gaps", len(gaps))
	}
	return nil
}

func (s *Store) SaveIncompletes(ctx context.Context, incompletes []IncompleteRecord) error {
	if len(incompletes) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&incompletes).Error; err != nil {
		return errors.Wrapf(err, "save %d incompletes", len(incompletes))
	}
	return nil
}
