package capa

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/infrastructure/persistence/memory"
	"capaflow/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "capaflow/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "capaflow/internal/infrastructure/persistence/sqlite/uow"
	"capaflow/internal/ports"
)

type testCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{
		data: make(map[string]string),
	}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type testMetrics struct {
	mu            sync.Mutex
	created       map[string]int
	transitions   map[string]int
	verifications map[string]int
	failures      map[string]int
}

func newTestMetrics() *testMetrics {
	return &testMetrics{
		created:       map[string]int{},
		transitions:   map[string]int{},
		verifications: map[string]int{},
		failures:      map[string]int{},
	}
}

func (m *testMetrics) CAPACreated(capaType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created[capaType]++
}

func (m *testMetrics) StatusChanged(from string, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[from+"->"+to]++
}

func (m *testMetrics) VerificationRecorded(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications[result]++
}

func (m *testMetrics) OperationFailed(operation string, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[operation+"/"+kind]++
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc     *Service
	cache   *testCache
	metrics *testMetrics
	clock   *fixedClock
	db      *gorm.DB
}

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "capa.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func setupService(t *testing.T) fixture {
	t.Helper()

	db := openTestDB(t)
	f := fixture{
		cache:   newTestCache(),
		metrics: newTestMetrics(),
		clock:   &fixedClock{now: testNow},
		db:      db,
	}
	f.svc = NewService(sqliterepo.NewCAPARepository(db), sqliteuow.NewUnitOfWork(db), f.cache, f.clock, f.metrics)
	return f
}

func setupMemoryService(t *testing.T) fixture {
	t.Helper()

	store := memory.NewStore()
	f := fixture{
		cache:   newTestCache(),
		metrics: newTestMetrics(),
		clock:   &fixedClock{now: testNow},
	}
	f.svc = NewService(store, store, f.cache, f.clock, f.metrics)
	return f
}

func mustCreate(t *testing.T, svc *Service, title string) domaincapa.CAPA {
	t.Helper()

	created, err := svc.CreateCAPA(context.Background(), CreateCAPAInput{
		Title:    title,
		Type:     domaincapa.TypeCorrective,
		Priority: domaincapa.PriorityHigh,
		Category: domaincapa.CategoryEquipment,
	})
	if err != nil {
		t.Fatalf("CreateCAPA() error = %v", err)
	}
	return created
}

func mustAddItem(t *testing.T, svc *Service, number string, description string, due time.Time) domaincapa.ActionItem {
	t.Helper()

	item, err := svc.AddActionItem(context.Background(), AddActionItemInput{
		Number:      number,
		Description: description,
		Assignee:    "ops",
		DueDate:     due,
	})
	if err != nil {
		t.Fatalf("AddActionItem() error = %v", err)
	}
	return item
}

func intPtr(v int) *int { return &v }

func TestToolWearFixScenario(t *testing.T) {
	for name, setup := range map[string]func(*testing.T) fixture{
		"sqlite": setupService,
		"memory": setupMemoryService,
	} {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()

			created := mustCreate(t, f.svc, "Tool wear fix")
			if created.Status != domaincapa.StatusDraft || created.Number != "CAPA-000001" {
				t.Fatalf("CreateCAPA() = %s %s", created.Number, created.Status)
			}

			due := testNow.AddDate(0, 0, 7)
			first := mustAddItem(t, f.svc, created.Number, "Replace worn insert", due)
			second := mustAddItem(t, f.svc, created.Number, "Update tool life limit", due)

			detail, err := f.svc.GetCAPA(ctx, created.Number)
			if err != nil {
				t.Fatalf("GetCAPA() error = %v", err)
			}
			if detail.Status != domaincapa.StatusInProgress || detail.Progress != 0 {
				t.Fatalf("after items: status=%s progress=%d", detail.Status, detail.Progress)
			}

			record, err := f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: created.Number, ItemID: first.ID, Status: "completed"})
			if err != nil {
				t.Fatalf("UpdateActionItemStatus() error = %v", err)
			}
			if record.Status != domaincapa.StatusInProgress || domaincapa.Progress(record) != 50 {
				t.Fatalf("after first completion: status=%s progress=%d", record.Status, domaincapa.Progress(record))
			}

			record, err = f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: created.Number, ItemID: second.ID, Status: "completed"})
			if err != nil {
				t.Fatalf("UpdateActionItemStatus() error = %v", err)
			}
			if record.Status != domaincapa.StatusVerification {
				t.Fatalf("after last completion: status=%s", record.Status)
			}

			record, err = f.svc.RecordVerification(ctx, RecordVerificationInput{
				Number:   created.Number,
				Verifier: "qa.lead",
				Result:   "effective",
				Rating:   intPtr(90),
			})
			if err != nil {
				t.Fatalf("RecordVerification() error = %v", err)
			}
			if record.Status != domaincapa.StatusClosed {
				t.Fatalf("status = %s, want closed", record.Status)
			}
			if record.EffectivenessRating == nil || *record.EffectivenessRating != 90 {
				t.Fatalf("rating = %v", record.EffectivenessRating)
			}
			if record.ActualClosureDate == nil || !record.ActualClosureDate.Equal(testNow) {
				t.Fatalf("closure date = %v", record.ActualClosureDate)
			}
			if len(record.VerificationRecords) != 1 {
				t.Fatalf("verification records = %d", len(record.VerificationRecords))
			}

			if _, err := f.svc.AddActionItem(ctx, AddActionItemInput{Number: created.Number, Description: "late", Assignee: "ops", DueDate: due}); err == nil {
				t.Fatalf("AddActionItem() on closed capa expected error")
			}

			if f.metrics.transitions["verification->closed"] != 1 || f.metrics.verifications["effective"] != 1 {
				t.Fatalf("metrics = %+v %+v", f.metrics.transitions, f.metrics.verifications)
			}
		})
	}
}

func TestPartialThenEffectiveScenario(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created := mustCreate(t, f.svc, "Supplier coating defects")
	item := mustAddItem(t, f.svc, created.Number, "Audit supplier line", testNow.AddDate(0, 0, 3))
	if _, err := f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: created.Number, ItemID: item.ID, Status: "completed"}); err != nil {
		t.Fatalf("UpdateActionItemStatus() error = %v", err)
	}

	record, err := f.svc.RecordVerification(ctx, RecordVerificationInput{Number: created.Number, Verifier: "qa", Result: "partial", Notes: "still seeing defects"})
	if err != nil {
		t.Fatalf("RecordVerification(partial) error = %v", err)
	}
	if record.Status != domaincapa.StatusVerification || record.EffectivenessRating != nil || record.ActualClosureDate != nil {
		t.Fatalf("after partial: %+v", record)
	}

	f.clock.Set(testNow.AddDate(0, 1, 0))
	record, err = f.svc.RecordVerification(ctx, RecordVerificationInput{Number: created.Number, Verifier: "qa", Result: "effective", Rating: intPtr(70)})
	if err != nil {
		t.Fatalf("RecordVerification(effective) error = %v", err)
	}
	if record.Status != domaincapa.StatusClosed || *record.EffectivenessRating != 70 {
		t.Fatalf("after effective: status=%s rating=%v", record.Status, record.EffectivenessRating)
	}
	if len(record.VerificationRecords) != 2 || record.VerificationRecords[0].Result != domaincapa.ResultPartial {
		t.Fatalf("records = %+v", record.VerificationRecords)
	}
	if record.VerificationRecords[1].ID != 2 {
		t.Fatalf("second record id = %d", record.VerificationRecords[1].ID)
	}
}

func TestCreateValidationCreatesNoRecord(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.svc.CreateCAPA(ctx, CreateCAPAInput{
		Title:    "  ",
		Type:     domaincapa.TypeCorrective,
		Priority: domaincapa.PriorityLow,
		Category: domaincapa.CategoryProcess,
	})
	var ve *domaincapa.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("CreateCAPA() error = %v, want ValidationError", err)
	}

	_, err = f.svc.CreateCAPA(ctx, CreateCAPAInput{Title: "x", Type: "kaizen", Priority: domaincapa.PriorityLow, Category: domaincapa.CategoryProcess})
	if !errors.As(err, &ve) {
		t.Fatalf("CreateCAPA(bad type) error = %v, want ValidationError", err)
	}

	list, err := f.svc.ListCAPAs(ctx, ListCAPAsInput{})
	if err != nil {
		t.Fatalf("ListCAPAs() error = %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("ListCAPAs() = %d records after failed create", len(list))
	}
	if f.metrics.failures["create/validation"] != 2 {
		t.Fatalf("failures = %+v", f.metrics.failures)
	}

	created := mustCreate(t, f.svc, "First valid")
	if created.Number != "CAPA-000001" {
		t.Fatalf("number after rejected creates = %s", created.Number)
	}
}

func TestNumbersAreUniqueUnderConcurrentCreates(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	const workers = 12
	var wg sync.WaitGroup
	results := make(chan string, workers)
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := f.svc.CreateCAPA(ctx, CreateCAPAInput{
				Title:    "parallel intake",
				Type:     domaincapa.TypePreventive,
				Priority: domaincapa.PriorityMedium,
				Category: domaincapa.CategoryTraining,
			})
			if err != nil {
				errCh <- err
				return
			}
			results <- created.Number
		}()
	}
	wg.Wait()
	close(results)
	close(errCh)

	for err := range errCh {
		t.Fatalf("CreateCAPA() error = %v", err)
	}
	seen := map[string]bool{}
	for number := range results {
		if seen[number] {
			t.Fatalf("duplicate number %s", number)
		}
		seen[number] = true
	}
	if len(seen) != workers || !seen["CAPA-000012"] {
		t.Fatalf("numbers = %v", seen)
	}
}

func TestCachedStatusFollowsCommits(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created := mustCreate(t, f.svc, "Cache check")
	if got := f.cache.data[cacheStatusKey(created.Number)]; got != "draft" {
		t.Fatalf("cached status after create = %q", got)
	}

	mustAddItem(t, f.svc, created.Number, "step", testNow)
	status, err := f.svc.CachedStatus(ctx, created.Number)
	if err != nil {
		t.Fatalf("CachedStatus() error = %v", err)
	}
	if status != domaincapa.StatusInProgress {
		t.Fatalf("CachedStatus() = %s", status)
	}

	_ = f.cache.Delete(ctx, cacheStatusKey(created.Number))
	status, err = f.svc.CachedStatus(ctx, "1")
	if err != nil {
		t.Fatalf("CachedStatus() after miss error = %v", err)
	}
	if status != domaincapa.StatusInProgress || f.cache.data[cacheStatusKey(created.Number)] != "in_progress" {
		t.Fatalf("CachedStatus() refill = %s, cache=%v", status, f.cache.data)
	}

	var nf *domaincapa.NotFoundError
	if _, err := f.svc.CachedStatus(ctx, "CAPA-000099"); !errors.As(err, &nf) {
		t.Fatalf("CachedStatus(missing) error = %v", err)
	}
}

func TestServiceRequiresContext(t *testing.T) {
	f := setupService(t)

	if _, err := f.svc.CreateCAPA(nil, CreateCAPAInput{}); err == nil {
		t.Fatalf("CreateCAPA(nil ctx) expected error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.svc.GetCAPA(ctx, "1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("GetCAPA(cancelled) error = %v", err)
	}

	empty := NewService(nil, nil, nil, nil, nil)
	if _, err := empty.Statistics(context.Background()); err == nil {
		t.Fatalf("Statistics() without repository expected error")
	}
}

var _ ports.Clock = (*fixedClock)(nil)
