package pipeline

import (
	"context"
	"errors"
	"strconv"

	"github.com/uiowa-coph/roomres/internal/docsync"
	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/repository"
	"github.com/uiowa-coph/roomres/internal/validate"
)

type updateState struct {
	caller    Caller
	packageID int
	sub       domain.EventSubmission

	existing *domain.EventRecord
	record   *domain.EventRecord
	actions  *domain.PackageActions
	layout   *domain.LayoutRecord

	syncDegraded string
}

// Update applies an authenticated user's edit to an event.
func (p *Pipeline) Update(ctx context.Context, caller Caller, packageID int, sub domain.EventSubmission) (*EventView, error) {
	st := &updateState{caller: caller, packageID: packageID, sub: sub}
	stages := []stage[updateState]{
		{StageValidating, p.updateValidate},
		{StageRecordStored, p.updatePersistRecord},
		{StagePermissions, p.updatePermissions},
		{StageLayoutValidated, p.updateValidateLayout},
		{StageLayoutStored, p.updatePersistLayout},
		{StageDocumentSynced, p.updateDocumentSync},
	}
	if err := runStages(ctx, "update", st, stages); err != nil {
		return nil, err
	}
	return &EventView{
		Event:        st.record,
		Permissions:  st.actions,
		Layout:       st.layout,
		SyncDegraded: st.syncDegraded,
	}, nil
}

func (p *Pipeline) updateValidate(_ context.Context, st *updateState) error {
	if fields := validate.Submission(st.sub); len(fields) > 0 {
		return &ValidationError{Stage: StageValidating, Fields: fields}
	}
	return nil
}

func (p *Pipeline) updatePersistRecord(_ context.Context, st *updateState) error {
	existing, err := p.events.GetByPackageID(st.packageID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return ErrNotFound
		}
		return upstream(systemRecordStore, StageRecordStored, err)
	}
	st.existing = existing

	record := st.sub.Record(st.packageID)
	// Edits never change approval; only the router callback does that.
	record.Approved = existing.Approved
	record.CreatedAt = existing.CreatedAt
	if err := p.events.Update(record); err != nil {
		return upstream(systemRecordStore, StageRecordStored, err)
	}
	st.record = record
	return nil
}

func (p *Pipeline) updatePermissions(ctx context.Context, st *updateState) error {
	actions, err := p.router.GetPermissions(ctx, st.caller.Token, st.caller.IP, st.packageID)
	if err != nil {
		return upstream(systemWorkflow, StagePermissions, err)
	}
	st.actions = actions
	return nil
}

func (p *Pipeline) updateValidateLayout(_ context.Context, st *updateState) error {
	if len(st.sub.Items) == 0 {
		return nil
	}
	if fields := validate.LayoutItems(st.sub.Items); len(fields) > 0 {
		return &ValidationError{Stage: StageLayoutValidated, Fields: fields}
	}
	return nil
}

func (p *Pipeline) updatePersistLayout(_ context.Context, st *updateState) error {
	if len(st.sub.Items) == 0 {
		return nil
	}
	packageID := st.packageID
	layout := &domain.LayoutRecord{
		ID:        strconv.Itoa(packageID),
		Type:      domain.LayoutTypePrivate,
		PackageID: &packageID,
		UserEmail: st.sub.UserEmail,
		Items:     st.sub.Items,
	}
	err := p.layouts.Update(layout)
	if errors.Is(err, repository.ErrLayoutNotFound) {
		err = p.layouts.Create(layout)
	}
	if err != nil {
		return upstream(systemLayoutStore, StageLayoutStored, err)
	}
	st.layout = layout
	return nil
}

func (p *Pipeline) updateDocumentSync(ctx context.Context, st *updateState) error {
	// Pending events are not mirrored; edits to an approved event must reach
	// the tracking list, best-effort.
	if st.record.Approved != domain.ApprovalComplete {
		return nil
	}
	if err := p.docs.Update(ctx, docsync.NewItem(st.record, p.baseURL)); err != nil {
		p.logger.Warn("document sync degraded on update",
			"package_id", st.record.PackageID, "error", err)
		st.syncDegraded = err.Error()
	}
	return nil
}

// ApplyCallback handles an asynchronous state report from the approval
// router. COMPLETE approves the record and fills the mirror; every other
// state is deliberately a logged no-op for now.
func (p *Pipeline) ApplyCallback(ctx context.Context, packageID int, state string) error {
	if state != domain.PackageComplete {
		// TODO: handle VOID callbacks by voiding the record once the router
		// team confirms they will send them.
		p.logger.Warn("ignoring workflow callback state",
			"package_id", packageID, "state", state)
		return nil
	}
	if err := p.events.SetApproved(packageID, domain.ApprovalComplete); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return ErrNotFound
		}
		return upstream(systemRecordStore, StageRecordStored, err)
	}
	record, err := p.events.GetByPackageID(packageID)
	if err != nil {
		return upstream(systemRecordStore, StageRecordStored, err)
	}
	if err := p.docs.Create(ctx, docsync.NewItem(record, p.baseURL)); err != nil {
		p.logger.Warn("document sync degraded on approval",
			"package_id", packageID, "error", err)
	}
	return nil
}

// Void cancels routing for an event and marks the record voided. The mirror
// entry, if any, is removed best-effort.
func (p *Pipeline) Void(ctx context.Context, caller Caller, packageID int, reason string) error {
	if err := p.router.VoidPackage(ctx, caller.Token, caller.IP, packageID, reason); err != nil {
		return upstream(systemWorkflow, StageRoutingRemoved, err)
	}
	if err := p.events.SetApproved(packageID, domain.ApprovalVoid); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return ErrNotFound
		}
		return upstream(systemRecordStore, StageRecordStored, err)
	}
	if err := p.docs.Delete(ctx, packageID); err != nil {
		p.logger.Warn("document sync degraded on void",
			"package_id", packageID, "error", err)
	}
	return nil
}
