package radiotherapy

import (
	"testing"

	"github.com/google/uuid"
)

func TestBuildDashboard(t *testing.T) {
	today := d(2024, 4, 10)

	ctToday := &Patient{ID: uuid.New(), CTSimulationDate: ptr(today)}
	startToday := &Patient{ID: uuid.New(), TreatmentStartDate: ptr(today)}
	overdue := &Patient{ID: uuid.New(), LastName: ptr("Bondar"), TreatmentStartDate: ptr(d(2024, 3, 20))}
	dischargeToday := &Patient{ID: uuid.New(), TreatmentStartDate: ptr(d(2024, 3, 1)), DischargeDate: ptr(today)}
	dischargedLastWeek := &Patient{ID: uuid.New(), DischargeDate: ptr(d(2024, 4, 4))}
	dischargedLongAgo := &Patient{ID: uuid.New(), DischargeDate: ptr(d(2024, 1, 4))}
	prep := &Patient{ID: uuid.New(), TreatmentStartDate: ptr(d(2024, 3, 1)), DischargeDate: ptr(d(2024, 4, 12))}

	patients := []*Patient{ctToday, startToday, overdue, dischargeToday, dischargedLastWeek, dischargedLongAgo, prep}
	latest := map[uuid.UUID]*MedicalIncapacity{
		overdue.ID: {ID: uuid.New(), PatientID: overdue.ID, EndDate: ptr(d(2024, 4, 14))},
		prep.ID:    {ID: uuid.New(), PatientID: prep.ID, EndDate: ptr(d(2024, 5, 30))},
	}

	dash := DefaultPolicy.BuildDashboard(patients, latest, today)

	if dash.CTToday != 1 || dash.StartToday != 1 || dash.DischargeToday != 1 {
		t.Errorf("unexpected today counts: ct=%d start=%d discharge=%d", dash.CTToday, dash.StartToday, dash.DischargeToday)
	}
	if dash.DischargedThisWeek != 2 {
		t.Errorf("expected 2 discharged this week, got %d", dash.DischargedThisWeek)
	}

	wantStages := map[Stage]int{
		StageNew:               0,
		StageCTSimulation:      1,
		StageTreatmentUpcoming: 0,
		StageInTreatment:       2,
		StageDischargePrep:     1,
		StageArchived:          3,
	}
	for st, n := range wantStages {
		if dash.Stages[st] != n {
			t.Errorf("stage %s: expected %d, got %d", st, n, dash.Stages[st])
		}
	}

	if len(dash.BloodTestAlerts) != 1 || dash.BloodTestAlerts[0].ID != overdue.ID {
		t.Errorf("expected one blood test alert for overdue patient, got %+v", dash.BloodTestAlerts)
	}
	if len(dash.ExpiringIncapacities) != 1 {
		t.Fatalf("expected one expiring certificate, got %d", len(dash.ExpiringIncapacities))
	}
	alert := dash.ExpiringIncapacities[0]
	if alert.Patient.Name != "Bondar" || !alert.RenewalDue.Equal(d(2024, 4, 12)) {
		t.Errorf("unexpected incapacity alert: %+v", alert)
	}
}

func TestBuildDashboard_Empty(t *testing.T) {
	dash := DefaultPolicy.BuildDashboard(nil, nil, d(2024, 4, 10))
	if dash.BloodTestAlerts == nil || dash.ExpiringIncapacities == nil {
		t.Error("expected empty slices, not nil, for JSON output")
	}
	if len(dash.Stages) != 6 {
		t.Errorf("expected all six stages present, got %d", len(dash.Stages))
	}
}

func TestFilterByStage(t *testing.T) {
	today := d(2024, 4, 10)
	patients := []*Patient{
		{ID: uuid.New(), CTSimulationDate: ptr(d(2024, 4, 8))},
		{ID: uuid.New(), TreatmentStartDate: ptr(d(2024, 4, 1))},
		{ID: uuid.New(), TreatmentStartDate: ptr(d(2024, 4, 2))},
	}
	if got := DefaultPolicy.FilterByStage(patients, StageInTreatment, today); len(got) != 2 {
		t.Errorf("expected 2 in treatment, got %d", len(got))
	}
	if got := DefaultPolicy.FilterByStage(patients, StageArchived, today); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}
