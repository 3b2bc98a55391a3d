package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"capaflow/internal/domain/capa"
	"capaflow/internal/ports"
)

func newRecord(t *testing.T, repo *CAPARepository, title string, capaType capa.Type) capa.CAPA {
	t.Helper()
	ctx := context.Background()

	seq, err := repo.NextNumber(ctx)
	if err != nil {
		t.Fatalf("NextNumber() error = %v", err)
	}
	record, err := capa.New(capa.NewCAPA{
		Title:    title,
		Type:     capaType,
		Priority: capa.PriorityHigh,
		Category: capa.CategoryProcess,
		Assignee: "quality",
	}, capa.FormatNumber(seq), time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("capa.New() error = %v", err)
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return record
}

func TestNextNumberIsMonotonic(t *testing.T) {
	repo := NewCAPARepository(openTestDB(t))
	ctx := context.Background()

	var last uint64
	for i := 0; i < 5; i++ {
		seq, err := repo.NextNumber(ctx)
		if err != nil {
			t.Fatalf("NextNumber() error = %v", err)
		}
		if seq <= last {
			t.Fatalf("NextNumber() = %d after %d", seq, last)
		}
		last = seq
	}
	if last != 5 {
		t.Fatalf("last = %d, want 5", last)
	}
}

func TestCreateGetRoundTripsAggregate(t *testing.T) {
	repo := NewCAPARepository(openTestDB(t))
	ctx := context.Background()

	record := newRecord(t, repo, "Tool wear fix", capa.TypeCorrective)
	due := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	if _, err := record.AddActionItem(capa.NewActionItem{Description: "replace insert", Assignee: "ops", DueDate: due}); err != nil {
		t.Fatalf("AddActionItem() error = %v", err)
	}
	record.RelatedNCRs = []string{"NCR-7", "NCR-3"}
	record.Status = capa.DeriveStatus(record)
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get(ctx, record.Number)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "Tool wear fix" || got.Status != capa.StatusInProgress {
		t.Fatalf("Get() = %+v", got)
	}
	if !got.VerificationRequired {
		t.Fatalf("verification required lost")
	}
	if len(got.ActionItems) != 1 || !got.ActionItems[0].DueDate.Equal(due) {
		t.Fatalf("action items = %+v", got.ActionItems)
	}
	if len(got.RelatedNCRs) != 2 || got.RelatedNCRs[0] != "NCR-7" {
		t.Fatalf("related ncrs = %v", got.RelatedNCRs)
	}
	if !got.CreatedDate.Equal(record.CreatedDate) {
		t.Fatalf("created date = %v", got.CreatedDate)
	}
}

func TestSaveKeepsVerificationHistoryAndClosure(t *testing.T) {
	repo := NewCAPARepository(openTestDB(t))
	ctx := context.Background()

	record := newRecord(t, repo, "Supplier audit gap", capa.TypePreventive)
	record.Status = capa.StatusVerification
	now := time.Date(2026, 1, 22, 9, 0, 0, 0, time.UTC)
	if _, err := record.RecordVerification(capa.NewVerification{Verifier: "qa", Result: capa.ResultPartial}, now); err != nil {
		t.Fatalf("RecordVerification() error = %v", err)
	}
	rating := 85
	if _, err := record.RecordVerification(capa.NewVerification{Verifier: "qa", Result: capa.ResultEffective, Rating: &rating}, now); err != nil {
		t.Fatalf("RecordVerification() error = %v", err)
	}
	record.Status = capa.DeriveStatus(record)
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get(ctx, record.Number)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != capa.StatusClosed {
		t.Fatalf("status = %q", got.Status)
	}
	if got.EffectivenessRating == nil || *got.EffectivenessRating != 85 {
		t.Fatalf("rating = %v", got.EffectivenessRating)
	}
	if got.ActualClosureDate == nil || !got.ActualClosureDate.Equal(now) {
		t.Fatalf("closure date = %v", got.ActualClosureDate)
	}
	if len(got.VerificationRecords) != 2 || got.VerificationRecords[0].Result != capa.ResultPartial {
		t.Fatalf("records = %+v", got.VerificationRecords)
	}
}

func TestListFilters(t *testing.T) {
	repo := NewCAPARepository(openTestDB(t))
	ctx := context.Background()

	first := newRecord(t, repo, "Calibration drift", capa.TypeCorrective)
	newRecord(t, repo, "Training refresh", capa.TypePreventive)
	third := newRecord(t, repo, "Cancelled idea", capa.TypePreventive)
	third.Status = capa.StatusCancelled
	if err := repo.Save(ctx, third); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	all, err := repo.List(ctx, ports.CAPAFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].Number != first.Number {
		t.Fatalf("List() = %d items", len(all))
	}

	preventive, err := repo.List(ctx, ports.CAPAFilter{Type: capa.TypePreventive, OnlyActive: true})
	if err != nil {
		t.Fatalf("List(preventive) error = %v", err)
	}
	if len(preventive) != 1 || preventive[0].Title != "Training refresh" {
		t.Fatalf("List(preventive) = %+v", preventive)
	}

	search, err := repo.List(ctx, ports.CAPAFilter{Search: "CALIBRATION"})
	if err != nil {
		t.Fatalf("List(search) error = %v", err)
	}
	if len(search) != 1 || search[0].Number != first.Number {
		t.Fatalf("List(search) = %+v", search)
	}
}

func TestDeleteRemovesChildren(t *testing.T) {
	db := openTestDB(t)
	repo := NewCAPARepository(db)
	ctx := context.Background()

	record := newRecord(t, repo, "Obsolete", capa.TypeCorrective)
	if _, err := record.AddActionItem(capa.NewActionItem{Description: "x", Assignee: "ops", DueDate: time.Now()}); err != nil {
		t.Fatalf("AddActionItem() error = %v", err)
	}
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := repo.Delete(ctx, record.Number); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, err := repo.Get(ctx, record.Number)
	var nf *capa.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Get() after delete error = %v", err)
	}

	var count int64
	if err := db.Table("capa_action_items").Count(&count).Error; err != nil {
		t.Fatalf("count action items: %v", err)
	}
	if count != 0 {
		t.Fatalf("orphan action items = %d", count)
	}

	if err := repo.Delete(ctx, record.Number); !errors.As(err, &nf) {
		t.Fatalf("second Delete() error = %v", err)
	}
}
