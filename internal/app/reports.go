package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/saltbush/stockyard/internal/domain"
)

// ReportKind selects a report.
type ReportKind string

const (
	ReportTreatmentRegister ReportKind = "treatment_register"
	ReportMovementLog       ReportKind = "movement_log"
	ReportWHPClearance      ReportKind = "whp_clearance"
	ReportSaleDraft         ReportKind = "sale_draft"
	ReportInventory         ReportKind = "inventory"
	ReportWeightSummary     ReportKind = "weight_summary"
)

// ReportParams bounds a report. AsOf defaults to the service clock; the
// range bounds apply to period reports and are ignored by point-in-time
// reports.
type ReportParams struct {
	AsOf time.Time
	From *time.Time
	To   *time.Time
}

// ReportDataset is a rendered-agnostic report table. Two runs with the
// same parameters against an unchanged store produce identical datasets;
// no wall-clock values leak in.
type ReportDataset struct {
	Kind    ReportKind `json:"kind"`
	Title   string     `json:"title"`
	AsOf    time.Time  `json:"as_of"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	// Summary holds footer lines such as totals and statistics.
	Summary []string `json:"summary,omitempty"`
}

const reportDateLayout = "02/01/2006"

// GenerateReport runs a read-only query over the registry and ledger and
// returns a structured table for the rendering layer.
func (s *Service) GenerateReport(ctx context.Context, kind ReportKind, params ReportParams) (ReportDataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.AsOf.IsZero() {
		params.AsOf = s.clock()
	}
	params.AsOf = params.AsOf.UTC()

	switch kind {
	case ReportTreatmentRegister:
		return s.treatmentRegister(ctx, params)
	case ReportMovementLog:
		return s.movementLog(ctx, params)
	case ReportWHPClearance:
		return s.whpClearanceReport(ctx, params)
	case ReportSaleDraft:
		return s.saleDraftReport(ctx, params)
	case ReportInventory:
		return s.inventoryReport(ctx, params)
	case ReportWeightSummary:
		return s.weightSummary(ctx, params)
	default:
		return ReportDataset{}, fmt.Errorf("%w: %q", ErrInvalidReportKind, kind)
	}
}

func (s *Service) treatmentRegister(ctx context.Context, params ReportParams) (ReportDataset, error) {
	events, err := s.repo.ListEvents(ctx, EventFilter{
		Types: []domain.EventType{domain.EventTreatment},
		From:  params.From,
		To:    params.To,
	})
	if err != nil {
		return ReportDataset{}, err
	}
	domain.SortEvents(events)

	ds := ReportDataset{
		Kind:    ReportTreatmentRegister,
		Title:   "Treatment Register",
		AsOf:    params.AsOf,
		Columns: []string{"Date", "Animal/Mob", "Product", "Dose", "Batch", "WHP End", "By"},
	}
	for _, ev := range events {
		subject, err := s.subjectLabel(ctx, ev)
		if err != nil {
			return ReportDataset{}, err
		}
		productName := ev.Treatment.ProductID
		if product, err := s.repo.GetProduct(ctx, ev.Treatment.ProductID); err == nil {
			productName = product.Name
		}
		window := domain.WHPWindow{
			MeatEnd: ev.Treatment.MeatWHPEnd,
			MilkEnd: ev.Treatment.MilkWHPEnd,
			ESIEnd:  ev.Treatment.ESIEnd,
		}
		ds.Rows = append(ds.Rows, []string{
			ev.OccurredAt.Format(reportDateLayout),
			subject,
			productName,
			dash(ev.Treatment.Dose),
			dash(ev.Treatment.BatchNumber),
			dashDate(window.LatestEnd()),
			dash(ev.Treatment.AdministeredBy),
		})
	}
	return ds, nil
}

func (s *Service) movementLog(ctx context.Context, params ReportParams) (ReportDataset, error) {
	events, err := s.repo.ListEvents(ctx, EventFilter{
		Types: []domain.EventType{domain.EventMovement},
		From:  params.From,
		To:    params.To,
	})
	if err != nil {
		return ReportDataset{}, err
	}
	domain.SortEvents(events)

	ds := ReportDataset{
		Kind:    ReportMovementLog,
		Title:   "Movement Log",
		AsOf:    params.AsOf,
		Columns: []string{"Date", "Animal/Mob", "From", "To", "Reason", "Head Count"},
	}
	for _, ev := range events {
		subject, err := s.subjectLabel(ctx, ev)
		if err != nil {
			return ReportDataset{}, err
		}
		var from, to, head string
		if ev.AnimalID != "" {
			from = dash(s.mobName(ctx, ev.Movement.FromMobID))
			to = dash(s.mobName(ctx, ev.Movement.ToMobID))
			head = "1"
		} else {
			from = dash(s.paddockName(ctx, ev.Movement.FromPaddockID))
			to = dash(s.paddockName(ctx, ev.Movement.ToPaddockID))
			head = "-"
			if ev.Movement.HeadCount > 0 {
				head = strconv.Itoa(ev.Movement.HeadCount)
			}
		}
		ds.Rows = append(ds.Rows, []string{
			ev.OccurredAt.Format(reportDateLayout),
			subject,
			from,
			to,
			dash(ev.Movement.Reason),
			head,
		})
	}
	return ds, nil
}

func (s *Service) whpClearanceReport(ctx context.Context, params ReportParams) (ReportDataset, error) {
	held, err := s.listUnderWHP(ctx, params.AsOf)
	if err != nil {
		return ReportDataset{}, err
	}
	ds := ReportDataset{
		Kind:    ReportWHPClearance,
		Title:   "WHP Clearance List",
		AsOf:    params.AsOf,
		Columns: []string{"Tag", "EID", "Product", "Treatment Date", "Clear Date", "Days Left"},
	}
	asOfDay := params.AsOf.Truncate(24 * time.Hour)
	for _, status := range held {
		for _, hold := range status.Holds {
			productName := hold.ProductID
			if product, err := s.repo.GetProduct(ctx, hold.ProductID); err == nil {
				productName = product.Name
			}
			end := hold.Window.LatestEnd()
			daysLeft := int(end.Sub(asOfDay).Hours() / 24)
			ds.Rows = append(ds.Rows, []string{
				dash(status.Animal.VisualTag),
				dash(status.Animal.EID),
				productName,
				hold.TreatedAt.Format(reportDateLayout),
				end.Format(reportDateLayout),
				strconv.Itoa(daysLeft),
			})
		}
	}
	ds.Summary = []string{fmt.Sprintf("Animals under WHP: %d", len(held))}
	return ds, nil
}

func (s *Service) saleDraftReport(ctx context.Context, params ReportParams) (ReportDataset, error) {
	held, err := s.listUnderWHP(ctx, params.AsOf)
	if err != nil {
		return ReportDataset{}, err
	}
	underWHP := make(map[string]bool, len(held))
	for _, status := range held {
		underWHP[status.Animal.ID] = true
	}

	animals, err := s.repo.ListAnimals(ctx, AnimalFilter{Statuses: []domain.AnimalStatus{domain.StatusActive}})
	if err != nil {
		return ReportDataset{}, err
	}
	sortAnimals(animals)

	ds := ReportDataset{
		Kind:    ReportSaleDraft,
		Title:   "Sale Draft Sheet",
		AsOf:    params.AsOf,
		Columns: []string{"Tag", "EID", "Species", "Breed", "Sex", "Mob", "Notes"},
	}
	ready := 0
	for _, animal := range animals {
		if underWHP[animal.ID] {
			continue
		}
		ready++
		ds.Rows = append(ds.Rows, []string{
			dash(animal.VisualTag),
			dash(animal.EID),
			string(animal.Species),
			dash(animal.Breed),
			string(animal.Sex),
			dash(s.mobName(ctx, animal.MobID)),
			dash(animal.Notes),
		})
	}
	ds.Summary = []string{fmt.Sprintf("Total animals ready for sale: %d", ready)}
	return ds, nil
}

func (s *Service) inventoryReport(ctx context.Context, params ReportParams) (ReportDataset, error) {
	animals, err := s.repo.ListAnimals(ctx, AnimalFilter{})
	if err != nil {
		return ReportDataset{}, err
	}
	sortAnimals(animals)

	ds := ReportDataset{
		Kind:    ReportInventory,
		Title:   "Animal Inventory",
		AsOf:    params.AsOf,
		Columns: []string{"Tag", "EID", "Species", "Breed", "Sex", "Status", "Mob"},
	}
	statusCounts := make(map[domain.AnimalStatus]int)
	speciesCounts := make(map[domain.Species]int)
	for _, animal := range animals {
		statusCounts[animal.Status]++
		if !animal.Status.Terminal() {
			speciesCounts[animal.Species]++
		}
		ds.Rows = append(ds.Rows, []string{
			dash(animal.VisualTag),
			dash(animal.EID),
			string(animal.Species),
			dash(animal.Breed),
			string(animal.Sex),
			string(animal.Status),
			dash(s.mobName(ctx, animal.MobID)),
		})
	}
	for _, status := range []domain.AnimalStatus{domain.StatusActive, domain.StatusMissing, domain.StatusSold, domain.StatusDead} {
		if n := statusCounts[status]; n > 0 {
			ds.Summary = append(ds.Summary, fmt.Sprintf("%s: %d", titleCase(string(status)), n))
		}
	}
	ds.Summary = append(ds.Summary, fmt.Sprintf("Total: %d", len(animals)))
	for _, species := range []domain.Species{domain.SpeciesCattle, domain.SpeciesSheep} {
		if n := speciesCounts[species]; n > 0 {
			ds.Summary = append(ds.Summary, fmt.Sprintf("On hand %s: %d", species, n))
		}
	}
	return ds, nil
}

func (s *Service) weightSummary(ctx context.Context, params ReportParams) (ReportDataset, error) {
	events, err := s.repo.ListEvents(ctx, EventFilter{
		Types: []domain.EventType{domain.EventWeigh},
		From:  params.From,
		To:    params.To,
	})
	if err != nil {
		return ReportDataset{}, err
	}
	domain.SortEvents(events)

	// Daily gain needs the weighing before each row, which may predate
	// the report window.
	history, err := s.repo.ListEvents(ctx, EventFilter{Types: []domain.EventType{domain.EventWeigh}})
	if err != nil {
		return ReportDataset{}, err
	}
	domain.SortEvents(history)

	ds := ReportDataset{
		Kind:    ReportWeightSummary,
		Title:   "Weight Summary",
		AsOf:    params.AsOf,
		Columns: []string{"Date", "Animal", "Weight (kg)", "Condition Score", "ADG (kg/day)"},
	}
	var total, minW, maxW float64
	for i, ev := range events {
		label, err := s.subjectLabel(ctx, ev)
		if err != nil {
			return ReportDataset{}, err
		}
		w := ev.Weigh.WeightKg
		total += w
		if i == 0 || w < minW {
			minW = w
		}
		if i == 0 || w > maxW {
			maxW = w
		}
		score := "-"
		if ev.Weigh.ConditionScore != nil {
			score = strconv.FormatFloat(*ev.Weigh.ConditionScore, 'f', 1, 64)
		}
		ds.Rows = append(ds.Rows, []string{
			ev.OccurredAt.Format(reportDateLayout),
			label,
			strconv.FormatFloat(w, 'f', 1, 64),
			score,
			dailyGain(history, ev),
		})
	}
	if n := len(events); n > 0 {
		ds.Summary = []string{
			fmt.Sprintf("Weighings: %d", n),
			fmt.Sprintf("Min: %.1f kg", minW),
			fmt.Sprintf("Max: %.1f kg", maxW),
			fmt.Sprintf("Average: %.1f kg", total/float64(n)),
		}
	}
	return ds, nil
}

// dailyGain computes average daily gain against the animal's previous
// weighing. Same-day re-weighs have no defined gain and report a dash.
func dailyGain(history []domain.Event, ev domain.Event) string {
	var prev *domain.Event
	for i := range history {
		h := history[i]
		if h.AnimalID != ev.AnimalID {
			continue
		}
		if h.OccurredAt.After(ev.OccurredAt) || (h.OccurredAt.Equal(ev.OccurredAt) && h.Seq >= ev.Seq) {
			break
		}
		prev = &history[i]
	}
	if prev == nil {
		return "-"
	}
	days := ev.OccurredAt.Truncate(24*time.Hour).Sub(prev.OccurredAt.Truncate(24*time.Hour)).Hours() / 24
	if days == 0 {
		return "-"
	}
	gain := (ev.Weigh.WeightKg - prev.Weigh.WeightKg) / days
	return strconv.FormatFloat(gain, 'f', 2, 64)
}

func (s *Service) subjectLabel(ctx context.Context, ev domain.Event) (string, error) {
	if ev.AnimalID != "" {
		animal, err := s.repo.GetAnimal(ctx, ev.AnimalID)
		if err != nil {
			return "", fmt.Errorf("animal %s: %w", ev.AnimalID, err)
		}
		return animal.DisplayID(), nil
	}
	if name := s.mobName(ctx, ev.MobID); name != "" {
		return name, nil
	}
	return ev.MobID, nil
}

func (s *Service) mobName(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	mob, err := s.repo.GetMob(ctx, id)
	if err != nil {
		return id
	}
	return mob.Name
}

func (s *Service) paddockName(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	paddock, err := s.repo.GetPaddock(ctx, id)
	if err != nil {
		return id
	}
	return paddock.Name
}

func sortAnimals(animals []domain.Animal) {
	sort.Slice(animals, func(i, j int) bool {
		a, b := animals[i], animals[j]
		if a.DisplayID() != b.DisplayID() {
			return a.DisplayID() < b.DisplayID()
		}
		return a.ID < b.ID
	})
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dashDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(reportDateLayout)
}
