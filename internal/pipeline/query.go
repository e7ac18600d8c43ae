package pipeline

import (
	"context"
	"errors"
	"strconv"

	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/repository"
)

// GetEvent returns the composed view for one event. Permissions come fresh
// from the router; a router outage degrades the view rather than hiding the
// record.
func (p *Pipeline) GetEvent(ctx context.Context, caller Caller, packageID int) (*EventView, error) {
	record, err := p.events.GetByPackageID(packageID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrNotFound
		}
		return nil, upstream(systemRecordStore, StageRecordStored, err)
	}

	view := &EventView{Event: record}
	actions, err := p.router.GetPermissions(ctx, caller.Token, caller.IP, packageID)
	if err != nil {
		p.logger.Warn("permissions unavailable for event view",
			"package_id", packageID, "error", err)
	} else {
		view.Permissions = actions
	}

	layout, err := p.layouts.GetByID(strconv.Itoa(packageID))
	if err != nil && !errors.Is(err, repository.ErrLayoutNotFound) {
		return nil, upstream(systemLayoutStore, StageLayoutStored, err)
	}
	view.Layout = layout
	if errors.Is(err, repository.ErrLayoutNotFound) {
		view.Layout = nil
	}
	return view, nil
}

// GetEvents lists records matching one indexed filter field.
func (p *Pipeline) GetEvents(_ context.Context, field, value string) ([]domain.EventRecord, error) {
	events, err := p.events.QueryByField(field, value)
	if err != nil {
		return nil, upstream(systemRecordStore, StageRecordStored, err)
	}
	return events, nil
}

// GetLayout fetches the layout for an event, ErrNotFound when the event was
// created without furniture items.
func (p *Pipeline) GetLayout(_ context.Context, packageID int) (*domain.LayoutRecord, error) {
	layout, err := p.layouts.GetByID(strconv.Itoa(packageID))
	if err != nil {
		if errors.Is(err, repository.ErrLayoutNotFound) {
			return nil, ErrNotFound
		}
		return nil, upstream(systemLayoutStore, StageLayoutStored, err)
	}
	return layout, nil
}

// GetLayoutByID fetches any layout, public templates included.
func (p *Pipeline) GetLayoutByID(_ context.Context, id string) (*domain.LayoutRecord, error) {
	layout, err := p.layouts.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrLayoutNotFound) {
			return nil, ErrNotFound
		}
		return nil, upstream(systemLayoutStore, StageLayoutStored, err)
	}
	return layout, nil
}

// GetLayouts lists layouts matching one indexed filter field.
func (p *Pipeline) GetLayouts(_ context.Context, field, value string) ([]domain.LayoutRecord, error) {
	layouts, err := p.layouts.QueryByField(field, value)
	if err != nil {
		return nil, upstream(systemLayoutStore, StageLayoutStored, err)
	}
	return layouts, nil
}
