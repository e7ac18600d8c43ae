package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"github.com/uiowa-coph/roomres/internal/docsync"
	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/repository"
	"github.com/uiowa-coph/roomres/internal/workflow"
)

type fakeRouter struct {
	mu          sync.Mutex
	nextID      int
	created     []workflow.RoutingEntry
	removed     []int
	voided      []int
	createErr   error
	removeErr   error
	permissions domain.PackageActions
	permErr     error
}

func (f *fakeRouter) CreatePackage(_ context.Context, _, _ string, entry workflow.RoutingEntry) (*domain.ApprovalPackage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	f.created = append(f.created, entry)
	return &domain.ApprovalPackage{
		PackageID: f.nextID,
		State:     domain.PackageRouting,
		Actions:   domain.PackageActions{CanEdit: true, CanVoid: true},
	}, nil
}

func (f *fakeRouter) GetPermissions(context.Context, string, string, int) (*domain.PackageActions, error) {
	if f.permErr != nil {
		return nil, f.permErr
	}
	actions := f.permissions
	return &actions, nil
}

func (f *fakeRouter) RemovePackage(_ context.Context, _, _ string, packageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, packageID)
	return nil
}

func (f *fakeRouter) VoidPackage(_ context.Context, _, _ string, packageID int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voided = append(f.voided, packageID)
	return nil
}

type fakeEventRepo struct {
	mu        sync.Mutex
	records   map[int]*domain.EventRecord
	createErr error
	lastQuery [2]string
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{records: map[int]*domain.EventRecord{}}
}

func (f *fakeEventRepo) Create(e *domain.EventRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *e
	f.records[e.PackageID] = &cp
	return nil
}

func (f *fakeEventRepo) GetByPackageID(packageID int) (*domain.EventRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.records[packageID]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEventRepo) QueryByField(field, value string) ([]domain.EventRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = [2]string{field, value}
	if _, ok := repository.EventFilterColumn(field); !ok {
		return nil, fmt.Errorf("no filter index for field %q", field)
	}
	var out []domain.EventRecord
	for _, e := range f.records {
		switch field {
		case "userEmail":
			if e.UserEmail == value {
				out = append(out, *e)
			}
		case "approved":
			if e.Approved == value {
				out = append(out, *e)
			}
		case "roomNumber":
			if e.RoomNumber == value {
				out = append(out, *e)
			}
		case "date":
			if e.Date == value {
				out = append(out, *e)
			}
		}
	}
	return out, nil
}

func (f *fakeEventRepo) Update(e *domain.EventRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[e.PackageID]; !ok {
		return repository.ErrEventNotFound
	}
	cp := *e
	f.records[e.PackageID] = &cp
	return nil
}

func (f *fakeEventRepo) SetApproved(packageID int, approved string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.records[packageID]
	if !ok {
		return repository.ErrEventNotFound
	}
	e.Approved = approved
	return nil
}

func (f *fakeEventRepo) Delete(packageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[packageID]; !ok {
		return repository.ErrEventNotFound
	}
	delete(f.records, packageID)
	return nil
}

type fakeLayoutRepo struct {
	mu      sync.Mutex
	layouts map[string]*domain.LayoutRecord
}

func newFakeLayoutRepo() *fakeLayoutRepo {
	return &fakeLayoutRepo{layouts: map[string]*domain.LayoutRecord{}}
}

func (f *fakeLayoutRepo) Create(l *domain.LayoutRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *l
	f.layouts[l.ID] = &cp
	return nil
}

func (f *fakeLayoutRepo) GetByID(id string) (*domain.LayoutRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.layouts[id]
	if !ok {
		return nil, repository.ErrLayoutNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLayoutRepo) QueryByField(field, value string) ([]domain.LayoutRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.LayoutRecord
	for _, l := range f.layouts {
		if (field == "type" && l.Type == value) || (field == "userEmail" && l.UserEmail == value) {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeLayoutRepo) Update(l *domain.LayoutRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.layouts[l.ID]; !ok {
		return repository.ErrLayoutNotFound
	}
	cp := *l
	f.layouts[l.ID] = &cp
	return nil
}

func (f *fakeLayoutRepo) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.layouts[id]; !ok {
		return repository.ErrLayoutNotFound
	}
	delete(f.layouts, id)
	return nil
}

type fakeDocSync struct {
	mu        sync.Mutex
	created   []docsync.Item
	updated   []docsync.Item
	deleted   []int
	createErr error
	updateErr error
	deleteErr error
}

func (f *fakeDocSync) Create(_ context.Context, item docsync.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, item)
	return nil
}

func (f *fakeDocSync) Update(_ context.Context, item docsync.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, item)
	return nil
}

func (f *fakeDocSync) Delete(_ context.Context, packageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, packageID)
	return nil
}

type testEnv struct {
	router  *fakeRouter
	events  *fakeEventRepo
	layouts *fakeLayoutRepo
	docs    *fakeDocSync
	p       *Pipeline
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		router:  &fakeRouter{permissions: domain.PackageActions{CanEdit: true}},
		events:  newFakeEventRepo(),
		layouts: newFakeLayoutRepo(),
		docs:    &fakeDocSync{},
	}
	env.p = New(env.router, env.events, env.layouts, env.docs, "https://rooms.test.uiowa.edu", slog.Default())
	return env
}

func testCaller() Caller {
	return Caller{Token: "user-token", IP: "10.0.0.1", Email: "x@uiowa.edu"}
}

func validSubmission() domain.EventSubmission {
	return domain.EventSubmission{
		UserEmail:  "x@uiowa.edu",
		EventName:  "Curing Cancer",
		Date:       "2018-08-01",
		StartTime:  "8:00 AM",
		EndTime:    "12:00 PM",
		RoomNumber: "XC100",
		NumPeople:  1,
	}
}

func layoutID(packageID int) string { return strconv.Itoa(packageID) }
