package radiotherapy

import "time"

// Postpone moves a fraction to newDate. The input is left untouched and the
// moved copy is returned. The first scheduled date is kept in OriginalDate.
func Postpone(f *Fraction, newDate time.Time, reason string, today time.Time) (*Fraction, error) {
	newDate = Day(newDate)
	if newDate.Before(Day(today)) && !f.IsMissed {
		return nil, invalid("date", "cannot move fraction to %s, which is in the past, unless it is marked missed", newDate.Format("2006-01-02"))
	}

	out := *f
	if out.OriginalDate == nil {
		out.OriginalDate = dayPtr(f.Date)
	}
	out.Date = newDate
	out.IsPostponed = true
	out.Reason = reason
	return &out, nil
}

// MarkMissed flags a fraction as missed. The date does not change.
func MarkMissed(f *Fraction, reason string) *Fraction {
	out := *f
	out.IsMissed = true
	out.Reason = reason
	return &out
}

// ApplyEdit applies a staff edit and reports whether the date moved. Moving
// the date records OriginalDate on the first move. Moving into the past is
// only allowed when the result is marked missed.
func ApplyEdit(f *Fraction, e FractionEdit, today time.Time) (*Fraction, bool, error) {
	out := *f
	if e.Dose != nil {
		if *e.Dose <= 0 {
			return nil, false, invalid("dose", "must be positive")
		}
		out.Dose = *e.Dose
	}
	if e.Delivered != nil {
		out.Delivered = *e.Delivered
	}
	if e.ConfirmedByDoctor != nil {
		out.ConfirmedByDoctor = *e.ConfirmedByDoctor
	}
	if e.IsMissed != nil {
		out.IsMissed = *e.IsMissed
	}
	if e.Reason != nil {
		out.Reason = *e.Reason
	}
	if e.Note != nil {
		out.Note = e.Note
	}

	moved := false
	if e.Date != nil && !sameDay(*e.Date, f.Date) {
		newDate := Day(*e.Date)
		if newDate.Before(Day(today)) && !out.IsMissed {
			return nil, false, invalid("date", "cannot move fraction to %s, which is in the past, unless it is marked missed", newDate.Format("2006-01-02"))
		}
		if out.OriginalDate == nil {
			out.OriginalDate = dayPtr(f.Date)
		}
		out.Date = newDate
		moved = true
	}
	return &out, moved, nil
}

// Reconcile computes the discharge date the fraction set implies. A nil
// result means there is nothing to derive from and the stored value is kept.
func Reconcile(p *Patient, fractions []*Fraction) *ReconcileResult {
	res := &ReconcileResult{
		PatientID:   p.ID,
		PatientName: p.FullName(),
		Previous:    p.DischargeDate,
		Discharge:   LastFractionDate(fractions),
	}
	if res.Discharge != nil {
		res.Changed = !equalDayPtr(p.DischargeDate, res.Discharge)
	}
	return res
}
