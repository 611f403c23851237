package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/saltbush/stockyard/internal/domain"
)

// TestWHPClearanceAndSaleDraftAgree verifies the two reports never
// disagree about an animal under withholding.
func TestWHPClearanceAndSaleDraftAgree(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	_, _, product, _ := seedHerd(t, svc)
	ctx := context.Background()

	if _, err := svc.RecordEvent(ctx, RecordEventInput{
		Type:       domain.EventTreatment,
		OccurredAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		AnimalRef:  "E001",
		Treatment:  &domain.TreatmentPayload{ProductID: product.ID},
	}); err != nil {
		t.Fatalf("RecordEvent() error = %v", err)
	}

	asOf := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)
	clearance, err := svc.GenerateReport(ctx, ReportWHPClearance, ReportParams{AsOf: asOf})
	if err != nil {
		t.Fatalf("GenerateReport(clearance) error = %v", err)
	}
	if len(clearance.Rows) != 1 || clearance.Rows[0][0] != "Y001" {
		t.Fatalf("expected Y001 in clearance report, got %+v", clearance.Rows)
	}
	if clearance.Rows[0][4] != "08/06/2024" {
		t.Fatalf("clear date = %q, want 08/06/2024", clearance.Rows[0][4])
	}
	if clearance.Rows[0][5] != "3" {
		t.Fatalf("days left = %q, want 3", clearance.Rows[0][5])
	}

	draft, err := svc.GenerateReport(ctx, ReportSaleDraft, ReportParams{AsOf: asOf})
	if err != nil {
		t.Fatalf("GenerateReport(sale draft) error = %v", err)
	}
	for _, row := range draft.Rows {
		if row[0] == "Y001" {
			t.Fatal("expected Y001 excluded from the sale draft while under WHP")
		}
	}

	// After clearance the draft picks the animal up again.
	after := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	draft, err = svc.GenerateReport(ctx, ReportSaleDraft, ReportParams{AsOf: after})
	if err != nil {
		t.Fatalf("GenerateReport(sale draft) error = %v", err)
	}
	if len(draft.Rows) != 1 || draft.Rows[0][0] != "Y001" {
		t.Fatalf("expected Y001 in the sale draft on 2024-06-09, got %+v", draft.Rows)
	}
}

// TestReportIdempotence verifies identical parameters over an unchanged
// store produce byte-identical datasets.
func TestReportIdempotence(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	seedHistory(t, svc)
	ctx := context.Background()

	params := ReportParams{AsOf: time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)}
	kinds := []ReportKind{
		ReportTreatmentRegister, ReportMovementLog, ReportWHPClearance,
		ReportSaleDraft, ReportInventory, ReportWeightSummary,
	}
	for _, kind := range kinds {
		first, err := svc.GenerateReport(ctx, kind, params)
		if err != nil {
			t.Fatalf("GenerateReport(%s) error = %v", kind, err)
		}
		second, err := svc.GenerateReport(ctx, kind, params)
		if err != nil {
			t.Fatalf("GenerateReport(%s) error = %v", kind, err)
		}
		a, err := json.Marshal(first)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		b, err := json.Marshal(second)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(a) != string(b) {
			t.Fatalf("report %s not idempotent:\n%s\n%s", kind, a, b)
		}
	}
}

// TestTreatmentRegisterRows verifies the register's period filter and
// row content.
func TestTreatmentRegisterRows(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	_, _, product, _ := seedHerd(t, svc)
	ctx := context.Background()

	for _, day := range []int{1, 3} {
		if _, err := svc.RecordEvent(ctx, RecordEventInput{
			Type:       domain.EventTreatment,
			OccurredAt: time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC),
			AnimalRef:  "E001",
			Treatment:  &domain.TreatmentPayload{ProductID: product.ID, BatchNumber: "B-77"},
		}); err != nil {
			t.Fatalf("RecordEvent() error = %v", err)
		}
	}

	from := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	report, err := svc.GenerateReport(ctx, ReportTreatmentRegister, ReportParams{
		AsOf: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		From: &from,
	})
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if len(report.Rows) != 1 {
		t.Fatalf("expected one row in range, got %d", len(report.Rows))
	}
	row := report.Rows[0]
	if row[0] != "03/06/2024" || row[1] != "Y001" || row[2] != "Drench-X" || row[4] != "B-77" {
		t.Fatalf("unexpected register row: %v", row)
	}
}

// TestWeightSummaryDailyGain verifies gain arithmetic and the same-day
// null case.
func TestWeightSummaryDailyGain(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	seedHerd(t, svc)
	ctx := context.Background()

	weighings := []struct {
		day    time.Time
		weight float64
	}{
		{time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), 200},
		{time.Date(2024, 5, 31, 8, 0, 0, 0, time.UTC), 230},
		{time.Date(2024, 5, 31, 16, 0, 0, 0, time.UTC), 231},
	}
	for _, w := range weighings {
		if _, err := svc.RecordEvent(ctx, RecordEventInput{
			Type:       domain.EventWeigh,
			OccurredAt: w.day,
			AnimalRef:  "E001",
			Weigh:      &domain.WeighPayload{WeightKg: w.weight},
		}); err != nil {
			t.Fatalf("RecordEvent(weigh) error = %v", err)
		}
	}

	report, err := svc.GenerateReport(ctx, ReportWeightSummary, ReportParams{
		AsOf: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if len(report.Rows) != 3 {
		t.Fatalf("expected three rows, got %d", len(report.Rows))
	}
	if got := report.Rows[0][4]; got != "-" {
		t.Fatalf("first weighing ADG = %q, want -", got)
	}
	if got := report.Rows[1][4]; got != "1.00" {
		t.Fatalf("second weighing ADG = %q, want 1.00", got)
	}
	if got := report.Rows[2][4]; got != "-" {
		t.Fatalf("same-day re-weigh ADG = %q, want -", got)
	}
}

// TestInventorySummaryCounts verifies the status and species tallies.
func TestInventorySummaryCounts(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	seedHistory(t, svc)

	report, err := svc.GenerateReport(context.Background(), ReportInventory, ReportParams{
		AsOf: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if len(report.Rows) != 2 {
		t.Fatalf("expected two animals, got %d rows", len(report.Rows))
	}
	want := []string{"Active: 1", "Dead: 1", "Total: 2", "On hand cattle: 1"}
	if len(report.Summary) != len(want) {
		t.Fatalf("summary = %v, want %v", report.Summary, want)
	}
	for i := range want {
		if report.Summary[i] != want[i] {
			t.Fatalf("summary = %v, want %v", report.Summary, want)
		}
	}
}
