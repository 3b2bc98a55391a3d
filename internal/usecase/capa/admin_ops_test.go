package capa

import (
	"context"
	"errors"
	"testing"

	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/ports"
)

func TestOpenCAPAOnlyFromDraft(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created := mustCreate(t, f.svc, "Receiving inspection gap")

	record, err := f.svc.OpenCAPA(ctx, created.Number)
	if err != nil {
		t.Fatalf("OpenCAPA() error = %v", err)
	}
	if record.Status != domaincapa.StatusOpen {
		t.Fatalf("status = %s", record.Status)
	}

	var ise *domaincapa.InvalidStateError
	if _, err := f.svc.OpenCAPA(ctx, created.Number); !errors.As(err, &ise) {
		t.Fatalf("OpenCAPA(open) error = %v", err)
	}

	mustAddItem(t, f.svc, created.Number, "Add sampling plan", testNow)
	detail, err := f.svc.GetCAPA(ctx, created.Number)
	if err != nil {
		t.Fatalf("GetCAPA() error = %v", err)
	}
	if detail.Status != domaincapa.StatusInProgress {
		t.Fatalf("status after first item = %s", detail.Status)
	}
}

func TestCancelCAPA(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created := mustCreate(t, f.svc, "Withdrawn complaint")
	mustAddItem(t, f.svc, created.Number, "Contact customer", testNow)

	record, err := f.svc.CancelCAPA(ctx, created.Number, "complaint withdrawn")
	if err != nil {
		t.Fatalf("CancelCAPA() error = %v", err)
	}
	if record.Status != domaincapa.StatusCancelled {
		t.Fatalf("status = %s", record.Status)
	}

	var ise *domaincapa.InvalidStateError
	if _, err := f.svc.CancelCAPA(ctx, created.Number, ""); !errors.As(err, &ise) {
		t.Fatalf("CancelCAPA(cancelled) error = %v", err)
	}
	if _, err := f.svc.RecordVerification(ctx, RecordVerificationInput{Number: created.Number, Verifier: "qa", Result: "partial"}); !errors.As(err, &ise) {
		t.Fatalf("RecordVerification(cancelled) error = %v", err)
	}
	if f.cache.data[cacheStatusKey(created.Number)] != "cancelled" {
		t.Fatalf("cache = %v", f.cache.data)
	}
}

func TestUpdateCAPAReDerivesStatus(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created := mustCreate(t, f.svc, "Documentation drift")

	off := false
	if _, err := f.svc.UpdateCAPA(ctx, UpdateCAPAInput{Number: created.Number, Patch: domaincapa.Patch{VerificationRequired: &off}}); err != nil {
		t.Fatalf("UpdateCAPA() error = %v", err)
	}
	item := mustAddItem(t, f.svc, created.Number, "Revise SOP", testNow)
	record, err := f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: created.Number, ItemID: item.ID, Status: "completed"})
	if err != nil {
		t.Fatalf("UpdateActionItemStatus() error = %v", err)
	}
	if record.Status != domaincapa.StatusInProgress {
		t.Fatalf("status without verification requirement = %s", record.Status)
	}

	on := true
	title := "Documentation drift in SOP-12"
	record, err = f.svc.UpdateCAPA(ctx, UpdateCAPAInput{Number: created.Number, Patch: domaincapa.Patch{
		Title:                &title,
		VerificationRequired: &on,
		RelatedNCRs:          []string{"NCR-9", "NCR-9", " NCR-2 "},
	}})
	if err != nil {
		t.Fatalf("UpdateCAPA() error = %v", err)
	}
	if record.Status != domaincapa.StatusVerification || record.Title != title {
		t.Fatalf("after patch: status=%s title=%q", record.Status, record.Title)
	}
	if len(record.RelatedNCRs) != 2 {
		t.Fatalf("related ncrs = %v", record.RelatedNCRs)
	}

	empty := ""
	var ve *domaincapa.ValidationError
	if _, err := f.svc.UpdateCAPA(ctx, UpdateCAPAInput{Number: created.Number, Patch: domaincapa.Patch{Title: &empty}}); !errors.As(err, &ve) {
		t.Fatalf("UpdateCAPA(empty title) error = %v", err)
	}
}

func TestDeleteCAPA(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	created := mustCreate(t, f.svc, "Test record")
	mustAddItem(t, f.svc, created.Number, "noop", testNow)

	if err := f.svc.DeleteCAPA(ctx, created.Number); err != nil {
		t.Fatalf("DeleteCAPA() error = %v", err)
	}
	if _, ok := f.cache.data[cacheStatusKey(created.Number)]; ok {
		t.Fatalf("cache entry survived delete")
	}

	var nf *domaincapa.NotFoundError
	if _, err := f.svc.GetCAPA(ctx, created.Number); !errors.As(err, &nf) {
		t.Fatalf("GetCAPA() after delete error = %v", err)
	}
	if err := f.svc.DeleteCAPA(ctx, created.Number); !errors.As(err, &nf) {
		t.Fatalf("DeleteCAPA() twice error = %v", err)
	}

	next := mustCreate(t, f.svc, "After delete")
	if next.Number != "CAPA-000002" {
		t.Fatalf("number after delete = %s, counter must not reuse", next.Number)
	}
}

func TestListAndStatistics(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	late := mustCreate(t, f.svc, "Late corrective")
	target := testNow.AddDate(0, 0, -3)
	if _, err := f.svc.UpdateCAPA(ctx, UpdateCAPAInput{Number: late.Number, Patch: domaincapa.Patch{TargetDate: &target}}); err != nil {
		t.Fatalf("UpdateCAPA() error = %v", err)
	}

	if _, err := f.svc.CreateCAPA(ctx, CreateCAPAInput{
		Title:    "Preventive review",
		Type:     domaincapa.TypePreventive,
		Priority: domaincapa.PriorityLow,
		Category: domaincapa.CategoryDesign,
	}); err != nil {
		t.Fatalf("CreateCAPA() error = %v", err)
	}

	closed := mustCreate(t, f.svc, "Closed one")
	item := mustAddItem(t, f.svc, closed.Number, "fix", testNow)
	if _, err := f.svc.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{Number: closed.Number, ItemID: item.ID, Status: "completed"}); err != nil {
		t.Fatalf("UpdateActionItemStatus() error = %v", err)
	}
	if _, err := f.svc.RecordVerification(ctx, RecordVerificationInput{Number: closed.Number, Verifier: "qa", Result: "effective", Rating: intPtr(100)}); err != nil {
		t.Fatalf("RecordVerification() error = %v", err)
	}

	overdue, err := f.svc.ListCAPAs(ctx, ListCAPAsInput{OverdueOnly: true})
	if err != nil {
		t.Fatalf("ListCAPAs(overdue) error = %v", err)
	}
	if len(overdue) != 1 || overdue[0].Number != late.Number || !overdue[0].Overdue {
		t.Fatalf("ListCAPAs(overdue) = %+v", overdue)
	}

	active, err := f.svc.ListCAPAs(ctx, ListCAPAsInput{Filter: ports.CAPAFilter{OnlyActive: true, Type: domaincapa.TypeCorrective}})
	if err != nil {
		t.Fatalf("ListCAPAs(active) error = %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("ListCAPAs(active corrective) = %d", len(active))
	}

	stats, err := f.svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.Total != 3 || stats.Open != 2 || stats.Closed != 1 || stats.Overdue != 1 {
		t.Fatalf("Statistics() = %+v", stats)
	}
	if stats.ByType[domaincapa.TypeCorrective] != 2 || stats.ByType[domaincapa.TypePreventive] != 1 {
		t.Fatalf("ByType = %+v", stats.ByType)
	}
}
