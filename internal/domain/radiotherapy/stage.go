package radiotherapy

import "time"

// Policy holds the clinic's tunable windows.
type Policy struct {
	DischargePrepDays     int
	BloodTestIntervalDays int
	IncapacityWarningDays int
}

// DefaultPolicy is used when no configuration overrides the windows.
var DefaultPolicy = Policy{
	DischargePrepDays:     3,
	BloodTestIntervalDays: 10,
	IncapacityWarningDays: 3,
}

// DisplayStage classifies a patient with the default discharge window.
func DisplayStage(p *Patient, today time.Time) Stage {
	return DefaultPolicy.Stage(p, today)
}

// Stage classifies a patient by its dates. Rules are checked in order and
// the first match wins.
func (pol Policy) Stage(p *Patient, today time.Time) Stage {
	today = Day(today)
	if p.DischargeDate != nil {
		discharge := Day(*p.DischargeDate)
		if !discharge.After(today) {
			return StageArchived
		}
		if !discharge.After(AddDays(today, pol.DischargePrepDays)) {
			return StageDischargePrep
		}
	}
	if p.TreatmentStartDate != nil && !Day(*p.TreatmentStartDate).After(today) {
		return StageInTreatment
	}
	if p.CTSimulationDate != nil && p.TreatmentStartDate == nil {
		return StageCTSimulation
	}
	if p.TreatmentStartDate != nil {
		return StageTreatmentUpcoming
	}
	return StageNew
}

// IsInTreatment is true once treatment has started and until the discharge
// day has passed. The discharge day itself still counts.
func IsInTreatment(p *Patient, today time.Time) bool {
	today = Day(today)
	if p.TreatmentStartDate == nil || Day(*p.TreatmentStartDate).After(today) {
		return false
	}
	return p.DischargeDate == nil || !Day(*p.DischargeDate).Before(today)
}
