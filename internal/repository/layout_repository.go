package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/observability"
)

var ErrLayoutNotFound = errors.New("layout not found")

// LayoutFilterColumn mirrors EventFilterColumn for the layout store.
func LayoutFilterColumn(field string) (string, bool) {
	col, ok := layoutFilterColumns[field]
	return col, ok
}

var layoutFilterColumns = map[string]string{
	"userEmail": "user_email",
	"type":      "type",
}

type LayoutRepository interface {
	Create(l *domain.LayoutRecord) error
	GetByID(id string) (*domain.LayoutRecord, error)
	QueryByField(field, value string) ([]domain.LayoutRecord, error)
	Update(l *domain.LayoutRecord) error
	Delete(id string) error
}

type GormLayoutRepository struct{ db *gorm.DB }

func NewLayoutRepository(db *gorm.DB) LayoutRepository { return &GormLayoutRepository{db: db} }

func (r *GormLayoutRepository) Create(l *domain.LayoutRecord) error {
	err := r.db.Create(l).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "layout", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "layout", "create", "success")
	return nil
}

func (r *GormLayoutRepository) GetByID(id string) (*domain.LayoutRecord, error) {
	var l domain.LayoutRecord
	err := r.db.Where("id = ?", id).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "layout", "get_by_id", "not_found")
			return nil, ErrLayoutNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "layout", "get_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "layout", "get_by_id", "success")
	return &l, nil
}

func (r *GormLayoutRepository) QueryByField(field, value string) ([]domain.LayoutRecord, error) {
	col, ok := LayoutFilterColumn(field)
	if !ok {
		observability.RecordRepositoryOperation(context.Background(), "layout", "query_by_field", "error")
		return nil, fmt.Errorf("unmapped layout filter field %q", field)
	}
	var layouts []domain.LayoutRecord
	err := r.db.Where(col+" = ?", value).Order("created_at DESC").Find(&layouts).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "layout", "query_by_field", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "layout", "query_by_field", "success")
	return layouts, nil
}

func (r *GormLayoutRepository) Update(l *domain.LayoutRecord) error {
	res := r.db.Model(&domain.LayoutRecord{}).
		Where("id = ?", l.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(l)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "layout", "update", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "layout", "update", "not_found")
		return ErrLayoutNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "layout", "update", "success")
	return nil
}

func (r *GormLayoutRepository) Delete(id string) error {
	res := r.db.Where("id = ?", id).Delete(&domain.LayoutRecord{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "layout", "delete", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "layout", "delete", "not_found")
		return ErrLayoutNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "layout", "delete", "success")
	return nil
}
