package pipeline

import (
	"context"
	"errors"
	"strconv"

	"github.com/uiowa-coph/roomres/internal/repository"
)

type deleteState struct {
	caller    Caller
	packageID int
}

// Delete removes an event everywhere: router package, record, layout, mirror
// entry, in that order. Unlike create, there is no best-effort continuation;
// the first failure stops the run so no stale externally-visible copy is left
// behind silently.
func (p *Pipeline) Delete(ctx context.Context, caller Caller, packageID int) error {
	st := &deleteState{caller: caller, packageID: packageID}
	stages := []stage[deleteState]{
		{StageRoutingRemoved, p.deleteRemovePackage},
		{StageRecordDeleted, p.deleteRecord},
		{StageLayoutDeleted, p.deleteLayout},
		{StageDocumentSynced, p.deleteDocumentSync},
	}
	return runStages(ctx, "delete", st, stages)
}

func (p *Pipeline) deleteRemovePackage(ctx context.Context, st *deleteState) error {
	if err := p.router.RemovePackage(ctx, st.caller.Token, st.caller.IP, st.packageID); err != nil {
		return upstream(systemWorkflow, StageRoutingRemoved, err)
	}
	return nil
}

func (p *Pipeline) deleteRecord(_ context.Context, st *deleteState) error {
	if err := p.events.Delete(st.packageID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return ErrNotFound
		}
		return upstream(systemRecordStore, StageRecordDeleted, err)
	}
	return nil
}

func (p *Pipeline) deleteLayout(_ context.Context, st *deleteState) error {
	err := p.layouts.Delete(strconv.Itoa(st.packageID))
	if err != nil && !errors.Is(err, repository.ErrLayoutNotFound) {
		return upstream(systemLayoutStore, StageLayoutDeleted, err)
	}
	// No layout is the common case; nothing to clean up.
	return nil
}

func (p *Pipeline) deleteDocumentSync(ctx context.Context, st *deleteState) error {
	if err := p.docs.Delete(ctx, st.packageID); err != nil {
		return upstream(systemDocSync, StageDocumentSynced, err)
	}
	return nil
}
