package capa

import (
	"context"
	"errors"
	"sync"
	"testing"

	domaincapa "capaflow/internal/domain/capa"
)

func TestAddActionItemErrors(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created := mustCreate(t, f.svc, "Fixture wear")

	var ve *domaincapa.ValidationError
	if _, err := f.svc.AddActionItem(ctx, AddActionItemInput{Number: created.Number, Assignee: "ops", DueDate: testNow}); !errors.As(err, &ve) {
		t.Fatalf("AddActionItem(no description) error = %v", err)
	}
	if _, err := f.svc.AddActionItem(ctx, AddActionItemInput{Number: created.Number, Description: "x", Assignee: "ops"}); !errors.As(err, &ve) {
		t.Fatalf("AddActionItem(no due date) error = %v", err)
	}

	var nf *domaincapa.NotFoundError
	if _, err := f.svc.AddActionItem(ctx, AddActionItemInput{Number: "CAPA-000042", Description: "x", Assignee: "ops", DueDate: testNow}); !errors.As(err, &nf) {
		t.Fatalf("AddActionItem(missing capa) error = %v", err)
	}

	detail, err := f.svc.GetCAPA(ctx, created.Number)
	if err != nil {
		t.Fatalf("GetCAPA() error = %v", err)
	}
	if detail.Status != domaincapa.StatusDraft || len(detail.ActionItems) != 0 {
		t.Fatalf("rejected adds changed the record: %+v", detail.CAPA)
	}
}

func TestAddActionItemLeavesVerificationStatus(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created := mustCreate(t, f.svc, "Gauge repeatability")
	item := mustAddItem(t, f.svc, created.Number, "MSA study", testNow)
	if _, err := f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: created.Number, ItemID: item.ID, Status: "completed"}); err != nil {
		t.Fatalf("UpdateActionItemStatus() error = %v", err)
	}

	added := mustAddItem(t, f.svc, created.Number, "Follow-up study", testNow)
	if added.ID != 2 || added.Status != domaincapa.ActionPending || added.CompletedDate != nil {
		t.Fatalf("added item = %+v", added)
	}
	detail, err := f.svc.GetCAPA(ctx, created.Number)
	if err != nil {
		t.Fatalf("GetCAPA() error = %v", err)
	}
	if detail.Status != domaincapa.StatusVerification {
		t.Fatalf("status = %s, want verification unchanged", detail.Status)
	}
}

func TestUpdateActionItemStatusErrors(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created := mustCreate(t, f.svc, "Weld porosity")
	item := mustAddItem(t, f.svc, created.Number, "Shielding gas check", testNow)

	var nf *domaincapa.NotFoundError
	if _, err := f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: created.Number, ItemID: 99, Status: "completed"}); !errors.As(err, &nf) {
		t.Fatalf("UpdateActionItemStatus(missing item) error = %v", err)
	}

	var ise *domaincapa.InvalidStateError
	if _, err := f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: created.Number, ItemID: item.ID, Status: "done"}); !errors.As(err, &ise) {
		t.Fatalf("UpdateActionItemStatus(bad status) error = %v", err)
	}
	if f.metrics.failures["update_action_item_status/invalid_state"] != 1 {
		t.Fatalf("failures = %+v", f.metrics.failures)
	}

	record, err := f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: created.Number, ItemID: item.ID, Status: "In Progress"})
	if err != nil {
		t.Fatalf("UpdateActionItemStatus(in progress) error = %v", err)
	}
	if record.ActionItems[0].Status != domaincapa.ActionInProgress || record.ActionItems[0].CompletedDate != nil {
		t.Fatalf("item = %+v", record.ActionItems[0])
	}

	if _, err := f.svc.CancelCAPA(ctx, created.Number, "duplicate"); err != nil {
		t.Fatalf("CancelCAPA() error = %v", err)
	}
	if _, err := f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: created.Number, ItemID: item.ID, Status: "completed"}); !errors.As(err, &ise) {
		t.Fatalf("UpdateActionItemStatus(cancelled capa) error = %v", err)
	}
}

func TestReopeningItemClearsCompletedDate(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created := mustCreate(t, f.svc, "Paint adhesion")
	first := mustAddItem(t, f.svc, created.Number, "Adjust cure oven", testNow)
	mustAddItem(t, f.svc, created.Number, "Retrain line", testNow)

	record, err := f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: created.Number, ItemID: first.ID, Status: "completed"})
	if err != nil {
		t.Fatalf("UpdateActionItemStatus() error = %v", err)
	}
	if record.ActionItems[0].CompletedDate == nil {
		t.Fatalf("completed item has no completed date")
	}

	record, err = f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: created.Number, ItemID: first.ID, Status: "pending"})
	if err != nil {
		t.Fatalf("UpdateActionItemStatus() error = %v", err)
	}
	stored, err := f.svc.GetCAPA(ctx, created.Number)
	if err != nil {
		t.Fatalf("GetCAPA() error = %v", err)
	}
	for _, items := range [][]domaincapa.ActionItem{record.ActionItems, stored.ActionItems} {
		if items[0].Status != domaincapa.ActionPending || items[0].CompletedDate != nil {
			t.Fatalf("reopened item = %+v", items[0])
		}
	}
}

func TestConcurrentCompletionsReachVerification(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created := mustCreate(t, f.svc, "Parallel closeout")

	const items = 8
	ids := make([]uint64, 0, items)
	for i := 0; i < items; i++ {
		ids = append(ids, mustAddItem(t, f.svc, created.Number, "step", testNow).ID)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, items)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if _, err := f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: created.Number, ItemID: id, Status: "completed"}); err != nil {
				errCh <- err
			}
		}(id)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("UpdateActionItemStatus() error = %v", err)
	}

	detail, err := f.svc.GetCAPA(ctx, created.Number)
	if err != nil {
		t.Fatalf("GetCAPA() error = %v", err)
	}
	if detail.Status != domaincapa.StatusVerification || detail.Progress != 100 {
		t.Fatalf("status=%s progress=%d", detail.Status, detail.Progress)
	}
	for _, item := range detail.ActionItems {
		if item.Status != domaincapa.ActionCompleted {
			t.Fatalf("lost update on item %d: %s", item.ID, item.Status)
		}
	}
	if f.metrics.transitions["in_progress->verification"] != 1 {
		t.Fatalf("transitions = %+v", f.metrics.transitions)
	}
}
