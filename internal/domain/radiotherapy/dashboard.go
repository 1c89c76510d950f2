package radiotherapy

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// PatientRef is a short patient line used in dashboard alerts.
type PatientRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// IncapacityAlert flags a certificate that needs renewal soon.
type IncapacityAlert struct {
	Patient      PatientRef `json:"patient"`
	IncapacityID uuid.UUID  `json:"incapacity_id"`
	EndDate      time.Time  `json:"end_date"`
	RenewalDue   time.Time  `json:"renewal_due"`
}

// Dashboard is the daily overview for clinic staff.
type Dashboard struct {
	Date                 time.Time          `json:"date"`
	CTToday              int                `json:"ct_today"`
	StartToday           int                `json:"start_today"`
	DischargeToday       int                `json:"discharge_today"`
	Stages               map[Stage]int      `json:"stages"`
	DischargedThisWeek   int                `json:"discharged_this_week"`
	BloodTestAlerts      []PatientRef       `json:"blood_test_alerts"`
	ExpiringIncapacities []*IncapacityAlert `json:"expiring_incapacities"`
}

// BuildDashboard aggregates the overview from the full patient list and the
// latest certificate per patient.
func (pol Policy) BuildDashboard(patients []*Patient, latest map[uuid.UUID]*MedicalIncapacity, today time.Time) *Dashboard {
	today = Day(today)
	weekAgo := AddDays(today, -7)

	d := &Dashboard{
		Date:                 today,
		Stages:               make(map[Stage]int),
		BloodTestAlerts:      []PatientRef{},
		ExpiringIncapacities: []*IncapacityAlert{},
	}
	for st := range validStages {
		d.Stages[st] = 0
	}

	for _, p := range patients {
		ref := PatientRef{ID: p.ID, Name: p.FullName()}
		if p.CTSimulationDate != nil && sameDay(*p.CTSimulationDate, today) {
			d.CTToday++
		}
		if p.TreatmentStartDate != nil && sameDay(*p.TreatmentStartDate, today) {
			d.StartToday++
		}
		if p.DischargeDate != nil {
			discharge := Day(*p.DischargeDate)
			if discharge.Equal(today) {
				d.DischargeToday++
			}
			if !discharge.Before(weekAgo) && !discharge.After(today) {
				d.DischargedThisWeek++
			}
		}
		d.Stages[pol.Stage(p, today)]++

		if pol.BloodTestOverdue(p, today) {
			d.BloodTestAlerts = append(d.BloodTestAlerts, ref)
		}
		if mi := latest[p.ID]; pol.IncapacityExpiringSoon(mi, today) {
			d.ExpiringIncapacities = append(d.ExpiringIncapacities, &IncapacityAlert{
				Patient:      ref,
				IncapacityID: mi.ID,
				EndDate:      Day(*mi.EndDate),
				RenewalDue:   IncapacityRenewalDue(*mi.EndDate),
			})
		}
	}

	sort.SliceStable(d.ExpiringIncapacities, func(i, j int) bool {
		return d.ExpiringIncapacities[i].RenewalDue.Before(d.ExpiringIncapacities[j].RenewalDue)
	})
	return d
}

// FilterByStage keeps the patients whose derived stage equals stage.
func (pol Policy) FilterByStage(patients []*Patient, stage Stage, today time.Time) []*Patient {
	out := make([]*Patient, 0)
	for _, p := range patients {
		if pol.Stage(p, today) == stage {
			out = append(out, p)
		}
	}
	return out
}
