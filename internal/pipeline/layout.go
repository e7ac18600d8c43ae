package pipeline

import (
	"context"
	"errors"

	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/repository"
	"github.com/uiowa-coph/roomres/internal/validate"
)

// SavePublicLayout creates or replaces a standalone layout template under a
// human-chosen id.
func (p *Pipeline) SavePublicLayout(_ context.Context, caller Caller, id string, items []domain.LayoutItem) (*domain.LayoutRecord, error) {
	if id == "" {
		return nil, &ValidationError{Stage: StageLayoutValidated, Fields: []validate.FieldError{
			{Field: "id", Message: "layout id is required"},
		}}
	}
	if fields := validate.LayoutItems(items); len(fields) > 0 {
		return nil, &ValidationError{Stage: StageLayoutValidated, Fields: fields}
	}
	layout := &domain.LayoutRecord{
		ID:        id,
		Type:      domain.LayoutTypePublic,
		UserEmail: caller.Email,
		Items:     items,
	}
	err := p.layouts.Update(layout)
	if errors.Is(err, repository.ErrLayoutNotFound) {
		err = p.layouts.Create(layout)
	}
	if err != nil {
		return nil, upstream(systemLayoutStore, StageLayoutStored, err)
	}
	return layout, nil
}

// DeleteLayout removes a layout by id.
func (p *Pipeline) DeleteLayout(_ context.Context, id string) error {
	if err := p.layouts.Delete(id); err != nil {
		if errors.Is(err, repository.ErrLayoutNotFound) {
			return ErrNotFound
		}
		return upstream(systemLayoutStore, StageLayoutDeleted, err)
	}
	return nil
}
