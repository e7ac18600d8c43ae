// Package pipeline orchestrates the event-submission sequence across the
// approval router, the record store, the layout store and the document-sync
// mirror. Stages run strictly in order; a stage failure short-circuits the
// rest and surfaces with the failing stage name attached.
package pipeline

import (
	"context"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/uiowa-coph/roomres/internal/docsync"
	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/observability"
	"github.com/uiowa-coph/roomres/internal/repository"
	"github.com/uiowa-coph/roomres/internal/validate"
	"github.com/uiowa-coph/roomres/internal/workflow"
)

// Stage names, in create order.
const (
	StageValidating      = "Validating"
	StageRoutingCreated  = "RoutingCreated"
	StageRecordStored    = "RecordStored"
	StageLayoutValidated = "LayoutValidated"
	StageLayoutStored    = "LayoutStored"
	StageDocumentSynced  = "DocumentSynced"
	StageRoutingRemoved  = "RoutingRemoved"
	StageRecordDeleted   = "RecordDeleted"
	StageLayoutDeleted   = "LayoutDeleted"
	StagePermissions     = "PermissionsFetched"
)

// System tags carried by UpstreamError.
const (
	systemWorkflow    = "workflow"
	systemRecordStore = "record_store"
	systemLayoutStore = "layout_store"
	systemDocSync     = "docsync"
)

// RouterClient is the approval-routing surface the pipeline depends on.
type RouterClient interface {
	CreatePackage(ctx context.Context, userToken, ip string, entry workflow.RoutingEntry) (*domain.ApprovalPackage, error)
	GetPermissions(ctx context.Context, userToken, ip string, packageID int) (*domain.PackageActions, error)
	RemovePackage(ctx context.Context, userToken, ip string, packageID int) error
	VoidPackage(ctx context.Context, userToken, ip string, packageID int, reason string) error
}

// DocSyncClient mirrors approved events into the tracking list.
type DocSyncClient interface {
	Create(ctx context.Context, item docsync.Item) error
	Update(ctx context.Context, item docsync.Item) error
	Delete(ctx context.Context, packageID int) error
}

// Caller identifies the authenticated user driving a pipeline run.
type Caller struct {
	Token string
	IP    string
	Email string
}

// EventView is the composed response for a single event.
type EventView struct {
	Event        *domain.EventRecord    `json:"event"`
	Permissions  *domain.PackageActions `json:"permissions,omitempty"`
	Layout       *domain.LayoutRecord   `json:"layout,omitempty"`
	SyncDegraded string                 `json:"syncDegraded,omitempty"`
}

type Pipeline struct {
	router  RouterClient
	events  repository.EventRepository
	layouts repository.LayoutRepository
	docs    DocSyncClient
	baseURL string
	logger  *slog.Logger
}

func New(router RouterClient, events repository.EventRepository, layouts repository.LayoutRepository, docs DocSyncClient, baseURL string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		router:  router,
		events:  events,
		layouts: layouts,
		docs:    docs,
		baseURL: baseURL,
		logger:  logger,
	}
}

var tracer = otel.Tracer("roomres/pipeline")

// stage is one step of a pipeline run over a shared mutable state. A non-nil
// error aborts the run.
type stage[S any] struct {
	name string
	run  func(ctx context.Context, st *S) error
}

func runStages[S any](ctx context.Context, operation string, st *S, stages []stage[S]) error {
	for _, s := range stages {
		stageCtx, span := tracer.Start(ctx, operation+"."+s.name,
			trace.WithAttributes(attribute.String("pipeline.stage", s.name)))
		err := s.run(stageCtx, st)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, s.name)
			span.End()
			observability.RecordPipelineStage(operation, s.name, "failure")
			return err
		}
		span.End()
		observability.RecordPipelineStage(operation, s.name, "success")
	}
	return nil
}

type createState struct {
	caller Caller
	sub    domain.EventSubmission

	pkg    *domain.ApprovalPackage
	record *domain.EventRecord
	layout *domain.LayoutRecord

	syncDegraded string
}

// Create runs the full submission pipeline and returns the composed view.
func (p *Pipeline) Create(ctx context.Context, caller Caller, sub domain.EventSubmission) (*EventView, error) {
	st := &createState{caller: caller, sub: sub}
	stages := []stage[createState]{
		{StageValidating, p.createValidate},
		{StageRoutingCreated, p.createRoute},
		{StageRecordStored, p.createPersistRecord},
		{StageLayoutValidated, p.createValidateLayout},
		{StageLayoutStored, p.createPersistLayout},
		{StageDocumentSynced, p.createDocumentSync},
	}
	if err := runStages(ctx, "create", st, stages); err != nil {
		return nil, err
	}
	return &EventView{
		Event:        st.record,
		Permissions:  &st.pkg.Actions,
		Layout:       st.layout,
		SyncDegraded: st.syncDegraded,
	}, nil
}

func (p *Pipeline) createValidate(_ context.Context, st *createState) error {
	if fields := validate.Submission(st.sub); len(fields) > 0 {
		return &ValidationError{Stage: StageValidating, Fields: fields}
	}
	return nil
}

func (p *Pipeline) createRoute(ctx context.Context, st *createState) error {
	entry := workflow.NewRoutingEntry(st.sub)
	pkg, err := p.router.CreatePackage(ctx, st.caller.Token, st.caller.IP, entry)
	if err != nil {
		// Nothing persisted yet; this is the one compensation-free abort.
		return upstream(systemWorkflow, StageRoutingCreated, err)
	}
	st.pkg = pkg
	return nil
}

func (p *Pipeline) createPersistRecord(_ context.Context, st *createState) error {
	record := st.sub.Record(st.pkg.PackageID)
	if err := p.events.Create(record); err != nil {
		// The router package now exists with no record behind it. Surface
		// the identifier so someone can reconcile it by hand.
		p.logger.Error("record store failed after package creation",
			"package_id", st.pkg.PackageID, "error", err)
		return &OrphanedPackageError{
			UpstreamError: *upstream(systemRecordStore, StageRecordStored, err),
			PackageID:     st.pkg.PackageID,
		}
	}
	st.record = record
	return nil
}

func (p *Pipeline) createValidateLayout(_ context.Context, st *createState) error {
	if len(st.sub.Items) == 0 {
		return nil
	}
	if fields := validate.LayoutItems(st.sub.Items); len(fields) > 0 {
		return &ValidationError{Stage: StageLayoutValidated, Fields: fields}
	}
	return nil
}

func (p *Pipeline) createPersistLayout(_ context.Context, st *createState) error {
	if len(st.sub.Items) == 0 {
		return nil
	}
	packageID := st.pkg.PackageID
	layout := &domain.LayoutRecord{
		ID:        strconv.Itoa(packageID),
		Type:      domain.LayoutTypePrivate,
		PackageID: &packageID,
		UserEmail: st.sub.UserEmail,
		Items:     st.sub.Items,
	}
	if err := p.layouts.Create(layout); err != nil {
		return upstream(systemLayoutStore, StageLayoutStored, err)
	}
	st.layout = layout
	return nil
}

func (p *Pipeline) createDocumentSync(ctx context.Context, st *createState) error {
	// New records are almost always still pending; the mirror normally fills
	// in later, from the approval callback.
	if st.record.Approved != domain.ApprovalComplete {
		return nil
	}
	if err := p.docs.Create(ctx, docsync.NewItem(st.record, p.baseURL)); err != nil {
		p.logger.Warn("document sync degraded on create",
			"package_id", st.record.PackageID, "error", err)
		st.syncDegraded = err.Error()
	}
	return nil
}
