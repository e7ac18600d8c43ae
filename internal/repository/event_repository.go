package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/observability"
)

var ErrEventNotFound = errors.New("event not found")

// EventFilterColumn maps a public filter field name to the indexed column
// backing it. The mapping is the canonical one; callers reaching for an
// unmapped field have a bug, not bad user input.
func EventFilterColumn(field string) (string, bool) {
	col, ok := eventFilterColumns[field]
	return col, ok
}

var eventFilterColumns = map[string]string{
	"userEmail":  "user_email",
	"roomNumber": "room_number",
	"approved":   "approved",
	"date":       "date",
}

type EventRepository interface {
	Create(e *domain.EventRecord) error
	GetByPackageID(packageID int) (*domain.EventRecord, error)
	QueryByField(field, value string) ([]domain.EventRecord, error)
	Update(e *domain.EventRecord) error
	SetApproved(packageID int, approved string) error
	Delete(packageID int) error
}

type GormEventRepository struct{ db *gorm.DB }

func NewEventRepository(db *gorm.DB) EventRepository { return &GormEventRepository{db: db} }

func (r *GormEventRepository) Create(e *domain.EventRecord) error {
	err := r.db.Create(e).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "event", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "event", "create", "success")
	return nil
}

func (r *GormEventRepository) GetByPackageID(packageID int) (*domain.EventRecord, error) {
	var e domain.EventRecord
	err := r.db.Where("package_id = ?", packageID).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "event", "get_by_package_id", "not_found")
			return nil, ErrEventNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "event", "get_by_package_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "event", "get_by_package_id", "success")
	return &e, nil
}

func (r *GormEventRepository) QueryByField(field, value string) ([]domain.EventRecord, error) {
	col, ok := EventFilterColumn(field)
	if !ok {
		observability.RecordRepositoryOperation(context.Background(), "event", "query_by_field", "error")
		return nil, fmt.Errorf("unmapped event filter field %q", field)
	}
	var events []domain.EventRecord
	err := r.db.Where(col+" = ?", value).Order("date ASC").Find(&events).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "event", "query_by_field", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "event", "query_by_field", "success")
	return events, nil
}

func (r *GormEventRepository) Update(e *domain.EventRecord) error {
	res := r.db.Model(&domain.EventRecord{}).
		Where("package_id = ?", e.PackageID).
		Select("*").
		Omit("package_id", "created_at").
		Updates(e)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "event", "update", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "event", "update", "not_found")
		return ErrEventNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "event", "update", "success")
	return nil
}

func (r *GormEventRepository) SetApproved(packageID int, approved string) error {
	res := r.db.Model(&domain.EventRecord{}).
		Where("package_id = ?", packageID).
		Update("approved", approved)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "event", "set_approved", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "event", "set_approved", "not_found")
		return ErrEventNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "event", "set_approved", "success")
	return nil
}

func (r *GormEventRepository) Delete(packageID int) error {
	res := r.db.Where("package_id = ?", packageID).Delete(&domain.EventRecord{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "event", "delete", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "event", "delete", "not_found")
		return ErrEventNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "event", "delete", "success")
	return nil
}
