package app

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/saltbush/stockyard/internal/domain"
)

// seedHistory records a handful of events across two animals so replay
// has something to chew on.
func seedHistory(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()

	_, mob, product, _ := seedHerd(t, svc)
	dob := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	if _, err := svc.RegisterAnimal(ctx, RegisterAnimalInput{
		EID:         "E002",
		DateOfBirth: &dob,
		MobID:       mob.ID,
	}); err != nil {
		t.Fatalf("RegisterAnimal(E002) error = %v", err)
	}
	if _, err := svc.RecordEvent(ctx, RecordEventInput{
		Type:       domain.EventTreatment,
		OccurredAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		AnimalRef:  "E001",
		Treatment:  &domain.TreatmentPayload{ProductID: product.ID},
	}); err != nil {
		t.Fatalf("RecordEvent(treatment) error = %v", err)
	}
	if _, err := svc.RecordEvent(ctx, RecordEventInput{
		Type:       domain.EventWeigh,
		OccurredAt: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		AnimalRef:  "E002",
		Weigh:      &domain.WeighPayload{WeightKg: 198},
	}); err != nil {
		t.Fatalf("RecordEvent(weigh) error = %v", err)
	}
	if _, err := svc.RecordEvent(ctx, RecordEventInput{
		Type:      domain.EventDeath,
		AnimalRef: "E002",
		Death:     &domain.DeathPayload{Cause: "blackleg", Disposal: "buried"},
	}); err != nil {
		t.Fatalf("RecordEvent(death) error = %v", err)
	}
}

// TestReplayDeterminism verifies two replays of the same ledger produce
// identical registry state.
func TestReplayDeterminism(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	seedHistory(t, svc)
	ctx := context.Background()

	first, err := svc.replayLedger(ctx)
	if err != nil {
		t.Fatalf("replayLedger() error = %v", err)
	}
	second, err := svc.replayLedger(ctx)
	if err != nil {
		t.Fatalf("replayLedger() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical registry state from repeated replays")
	}
}

// TestVerifyConsistencyCleanStore verifies the live projection always
// matches a replay.
func TestVerifyConsistencyCleanStore(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	seedHistory(t, svc)

	diffs, err := svc.VerifyConsistency(context.Background())
	if err != nil {
		t.Fatalf("VerifyConsistency() error = %v, diffs = %v", err, diffs)
	}
	if len(diffs) != 0 {
		t.Fatalf("expected no divergences, got %v", diffs)
	}
}

// TestVerifyConsistencyDetectsTampering verifies a registry row edited
// behind the ledger's back is reported and repaired by a rebuild.
func TestVerifyConsistencyDetectsTampering(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	seedHistory(t, svc)
	ctx := context.Background()

	animal, err := svc.ResolveAnimal(ctx, "E002")
	if err != nil {
		t.Fatalf("ResolveAnimal() error = %v", err)
	}
	animal.Status = domain.StatusActive
	repo.animals[animal.ID] = animal

	diffs, err := svc.VerifyConsistency(ctx)
	if !errors.Is(err, ErrConsistency) {
		t.Fatalf("expected ErrConsistency, got %v", err)
	}
	if len(diffs) == 0 {
		t.Fatal("expected divergence descriptions")
	}

	if err := svc.RebuildRegistry(ctx); err != nil {
		t.Fatalf("RebuildRegistry() error = %v", err)
	}
	if diffs, err := svc.VerifyConsistency(ctx); err != nil {
		t.Fatalf("VerifyConsistency() after rebuild error = %v, diffs = %v", err, diffs)
	}
	repaired, err := svc.ResolveAnimal(ctx, "E002")
	if err != nil {
		t.Fatalf("ResolveAnimal() error = %v", err)
	}
	if repaired.Status != domain.StatusDead {
		t.Fatalf("status = %q, want dead restored from ledger", repaired.Status)
	}
}

// TestBackdatedWeighKeepsChronologicalLatest verifies a back-entered
// weigh re-folds the animal's ledger, so the cached weight stays the
// chronologically newest one and the registry still matches a replay.
func TestBackdatedWeighKeepsChronologicalLatest(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	seedHerd(t, svc)
	ctx := context.Background()

	if _, err := svc.RecordEvent(ctx, RecordEventInput{
		Type:       domain.EventWeigh,
		OccurredAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		AnimalRef:  "E001",
		Weigh:      &domain.WeighPayload{WeightKg: 300},
	}); err != nil {
		t.Fatalf("RecordEvent(weigh) error = %v", err)
	}
	if _, err := svc.RecordEvent(ctx, RecordEventInput{
		Type:       domain.EventWeigh,
		OccurredAt: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		AnimalRef:  "E001",
		Weigh:      &domain.WeighPayload{WeightKg: 200},
	}); err != nil {
		t.Fatalf("RecordEvent(back-dated weigh) error = %v", err)
	}

	animal, err := svc.ResolveAnimal(ctx, "E001")
	if err != nil {
		t.Fatalf("ResolveAnimal() error = %v", err)
	}
	if animal.LatestWeightKg == nil || *animal.LatestWeightKg != 300 {
		t.Fatalf("latest weight = %v, want the June reading 300", animal.LatestWeightKg)
	}

	diffs, err := svc.VerifyConsistency(ctx)
	if err != nil {
		t.Fatalf("VerifyConsistency() error = %v, diffs = %v", err, diffs)
	}
	if len(diffs) != 0 {
		t.Fatalf("expected no divergences, got %v", diffs)
	}
}

// TestBackdatedEntryBeforeRegistration verifies an entry dated before
// its animal's registration event still replays and rebuilds; animals
// are seeded from their birth payloads before the fold.
func TestBackdatedEntryBeforeRegistration(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	_, mob, _, _ := seedHerd(t, svc)
	ctx := context.Background()

	// No DOB, so the birth event is dated at the registration clock.
	if _, err := svc.RegisterAnimal(ctx, RegisterAnimalInput{
		EID:   "E003",
		MobID: mob.ID,
	}); err != nil {
		t.Fatalf("RegisterAnimal(E003) error = %v", err)
	}
	if _, err := svc.RecordEvent(ctx, RecordEventInput{
		Type:       domain.EventWeigh,
		OccurredAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		AnimalRef:  "E003",
		Weigh:      &domain.WeighPayload{WeightKg: 180},
	}); err != nil {
		t.Fatalf("RecordEvent(back-dated weigh) error = %v", err)
	}

	diffs, err := svc.VerifyConsistency(ctx)
	if err != nil {
		t.Fatalf("VerifyConsistency() error = %v, diffs = %v", err, diffs)
	}
	if err := svc.RebuildRegistry(ctx); err != nil {
		t.Fatalf("RebuildRegistry() error = %v", err)
	}
	rebuilt, err := svc.ResolveAnimal(ctx, "E003")
	if err != nil {
		t.Fatalf("ResolveAnimal() error = %v", err)
	}
	if rebuilt.LatestWeightKg == nil || *rebuilt.LatestWeightKg != 180 {
		t.Fatalf("latest weight = %v, want 180 after rebuild", rebuilt.LatestWeightKg)
	}
}

// TestBackdatedTreatmentKeepsLaterClearance verifies a back-entered
// treatment neither rolls the clear date back nor reopens tasks from
// later treatments.
func TestBackdatedTreatmentKeepsLaterClearance(t *testing.T) {
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
		t.Fatalf("RecordEvent(treatment) error = %v", err)
	}
	tasks, err := svc.ListOpenTasks(ctx, nil)
	if err != nil {
		t.Fatalf("ListOpenTasks() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one clearance task, got %d", len(tasks))
	}
	if _, err := svc.CompleteTask(ctx, tasks[0].ID); err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}

	if _, err := svc.RecordEvent(ctx, RecordEventInput{
		Type:       domain.EventTreatment,
		OccurredAt: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		AnimalRef:  "E001",
		Treatment:  &domain.TreatmentPayload{ProductID: product.ID},
	}); err != nil {
		t.Fatalf("RecordEvent(back-dated treatment) error = %v", err)
	}

	animal, err := svc.ResolveAnimal(ctx, "E001")
	if err != nil {
		t.Fatalf("ResolveAnimal() error = %v", err)
	}
	wantClear := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)
	if animal.WHPClearDate == nil || !animal.WHPClearDate.Equal(wantClear) {
		t.Fatalf("WHP clear date = %v, want the June window %v", animal.WHPClearDate, wantClear)
	}

	open, err := svc.ListOpenTasks(ctx, nil)
	if err != nil {
		t.Fatalf("ListOpenTasks() error = %v", err)
	}
	if len(open) != 1 || open[0].Kind != domain.TaskWHPClearance {
		t.Fatalf("expected only the back-dated clearance task open, got %+v", open)
	}
	if !open[0].DueAt.Equal(time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("back-dated task due %v, want 2024-01-17", open[0].DueAt)
	}

	diffs, err := svc.VerifyConsistency(ctx)
	if err != nil {
		t.Fatalf("VerifyConsistency() error = %v, diffs = %v", err, diffs)
	}
	if len(diffs) != 0 {
		t.Fatalf("expected no divergences, got %v", diffs)
	}
}

// TestRebuildPreservesTaskCompletions verifies a rebuild regenerates
// tasks without reopening completed ones.
func TestRebuildPreservesTaskCompletions(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	seedHistory(t, svc)
	ctx := context.Background()

	tasks, err := svc.ListOpenTasks(ctx, nil)
	if err != nil {
		t.Fatalf("ListOpenTasks() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one open task, got %d", len(tasks))
	}
	if _, err := svc.CompleteTask(ctx, tasks[0].ID); err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}

	if err := svc.RebuildRegistry(ctx); err != nil {
		t.Fatalf("RebuildRegistry() error = %v", err)
	}
	open, err := svc.ListOpenTasks(ctx, nil)
	if err != nil {
		t.Fatalf("ListOpenTasks() error = %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected completed task to stay done, got %+v", open)
	}
}

// TestRebuildPreservesDescriptiveEdits verifies registry-only fields
// survive a rebuild.
func TestRebuildPreservesDescriptiveEdits(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	seedHistory(t, svc)
	ctx := context.Background()

	animal, err := svc.ResolveAnimal(ctx, "E001")
	if err != nil {
		t.Fatalf("ResolveAnimal() error = %v", err)
	}
	if _, err := svc.UpdateAnimalDetails(ctx, animal.ID, "", "Brahman cross", "left ear notch"); err != nil {
		t.Fatalf("UpdateAnimalDetails() error = %v", err)
	}

	if err := svc.RebuildRegistry(ctx); err != nil {
		t.Fatalf("RebuildRegistry() error = %v", err)
	}
	rebuilt, err := svc.ResolveAnimal(ctx, "E001")
	if err != nil {
		t.Fatalf("ResolveAnimal() error = %v", err)
	}
	if rebuilt.Breed != "Brahman cross" || rebuilt.Notes != "left ear notch" {
		t.Fatalf("descriptive edits lost in rebuild: %+v", rebuilt)
	}
}
