package radiotherapy

import "time"

// ComputeProgress tallies delivered fractions against the planned total.
// Remaining is not clamped: extra deliveries show as a negative number.
func ComputeProgress(p *Patient, fractions []*Fraction) Progress {
	total := 0
	if p.TotalFractions != nil {
		total = *p.TotalFractions
	}
	completed := countDelivered(fractions)

	pr := Progress{
		Total:     total,
		Completed: completed,
		Remaining: total - completed,
	}
	if total > 0 {
		pr.Percentage = float64(completed) / float64(total) * 100
	}
	return pr
}

// MissedWorkingDays is the number of working days since the start of
// treatment on which no delivered fraction is recorded. Zero when the patient
// is not in treatment.
func MissedWorkingDays(p *Patient, fractions []*Fraction, today time.Time) int {
	if !IsInTreatment(p, today) {
		return 0
	}
	end := Day(today)
	if p.DischargeDate != nil && Day(*p.DischargeDate).Before(end) {
		end = Day(*p.DischargeDate)
	}
	missed := CountWorkingDays(*p.TreatmentStartDate, end) - countDelivered(fractions)
	if missed < 0 {
		return 0
	}
	return missed
}

// FractionCounts returns how many fractions are flagged missed and postponed.
func FractionCounts(fractions []*Fraction) (missed, postponed int) {
	for _, f := range fractions {
		if f.IsMissed {
			missed++
		}
		if f.IsPostponed {
			postponed++
		}
	}
	return missed, postponed
}

func countDelivered(fractions []*Fraction) int {
	n := 0
	for _, f := range fractions {
		if f.Delivered {
			n++
		}
	}
	return n
}
