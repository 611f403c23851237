package domain

import "time"

// WHPWindow is the set of withholding end dates produced by one
// treatment. A nil end means the channel carries no withholding.
type WHPWindow struct {
	MeatEnd *time.Time
	MilkEnd *time.Time
	ESIEnd  *time.Time
}

// ComputeWHP derives the withholding window for a treatment administered
// at treatedAt with the given product. Each end date is the treatment
// date plus the channel's whole-day window; a zero-day channel yields no
// end date.
func ComputeWHP(p Product, treatedAt time.Time) WHPWindow {
	day := treatedAt.UTC().Truncate(24 * time.Hour)
	end := func(days int) *time.Time {
		if days <= 0 {
			return nil
		}
		e := day.AddDate(0, 0, days)
		return &e
	}
	return WHPWindow{
		MeatEnd: end(p.MeatWHPDays),
		MilkEnd: end(p.MilkWHPDays),
		ESIEnd:  end(p.ESIDays),
	}
}

// LatestEnd returns the latest end date across all channels, or nil when
// the window carries no withholding at all.
func (w WHPWindow) LatestEnd() *time.Time {
	var latest *time.Time
	for _, end := range []*time.Time{w.MeatEnd, w.MilkEnd, w.ESIEnd} {
		if end == nil {
			continue
		}
		if latest == nil || end.After(*latest) {
			latest = end
		}
	}
	return latest
}

// ClearOn reports whether every channel has cleared as of the given
// date. Clearance is conjunctive: the animal is clear only once the
// latest end date has been reached or passed.
func (w WHPWindow) ClearOn(asOf time.Time) bool {
	latest := w.LatestEnd()
	if latest == nil {
		return true
	}
	return !asOf.UTC().Before(*latest)
}

// LaterDate returns the later of two nullable dates.
func LaterDate(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.After(*a) {
		return b
	}
	return a
}
