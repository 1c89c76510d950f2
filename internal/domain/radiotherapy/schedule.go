package radiotherapy

import (
	"time"

	"github.com/google/uuid"
)

// MaxFractions caps a course. Real courses run up to about 45 fractions.
const MaxFractions = 100

// GenerateSchedule places count fractions of dose on consecutive working
// days starting at start (or the next Monday when start is a weekend).
func GenerateSchedule(start time.Time, count int, dose float64) ([]*Fraction, error) {
	if start.IsZero() || count <= 0 || dose <= 0 {
		return nil, ErrInsufficientInput
	}
	if count > MaxFractions {
		return nil, invalid("total_fractions", "must not exceed %d", MaxFractions)
	}

	fractions := make([]*Fraction, 0, count)
	d := Day(start)
	for len(fractions) < count {
		if IsWorkingDay(d) {
			fractions = append(fractions, &Fraction{
				ID:   uuid.New(),
				Date: d,
				Dose: dose,
			})
		}
		d = d.AddDate(0, 0, 1)
	}
	return fractions, nil
}

// ScheduleForPatient generates the schedule from the patient's own start
// date, fraction count and dose, and binds every fraction to the patient.
func ScheduleForPatient(p *Patient) ([]*Fraction, error) {
	if p.TreatmentStartDate == nil || p.TotalFractions == nil || p.DosePerFraction == nil {
		return nil, ErrInsufficientInput
	}
	fractions, err := GenerateSchedule(*p.TreatmentStartDate, *p.TotalFractions, *p.DosePerFraction)
	if err != nil {
		return nil, err
	}
	for _, f := range fractions {
		f.PatientID = p.ID
	}
	return fractions, nil
}

// CanGenerateSchedule reports whether the patient carries everything
// ScheduleForPatient needs.
func CanGenerateSchedule(p *Patient) bool {
	return p.TreatmentStartDate != nil &&
		p.TotalFractions != nil && *p.TotalFractions > 0 &&
		p.DosePerFraction != nil && *p.DosePerFraction > 0
}

// LastFractionDate returns the latest fraction date, or nil for an empty set.
func LastFractionDate(fractions []*Fraction) *time.Time {
	var last *time.Time
	for _, f := range fractions {
		if last == nil || f.Date.After(*last) {
			last = dayPtr(f.Date)
		}
	}
	return last
}
