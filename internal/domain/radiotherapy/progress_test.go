package radiotherapy

import (
	"testing"
)

func delivered(n int, rest int) []*Fraction {
	var out []*Fraction
	for i := 0; i < n; i++ {
		out = append(out, &Fraction{Delivered: true})
	}
	for i := 0; i < rest; i++ {
		out = append(out, &Fraction{})
	}
	return out
}

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name      string
		total     *int
		fractions []*Fraction
		want      Progress
	}{
		{"no plan", nil, nil, Progress{}},
		{"not started", ptr(25), delivered(0, 25), Progress{Total: 25, Remaining: 25}},
		{"partway", ptr(20), delivered(5, 15), Progress{Total: 20, Completed: 5, Remaining: 15, Percentage: 25}},
		{"complete", ptr(10), delivered(10, 0), Progress{Total: 10, Completed: 10, Remaining: 0, Percentage: 100}},
		{"over delivered", ptr(4), delivered(5, 0), Progress{Total: 4, Completed: 5, Remaining: -1, Percentage: 125}},
		{"deliveries without plan", nil, delivered(2, 0), Progress{Completed: 2, Remaining: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeProgress(&Patient{TotalFractions: tt.total}, tt.fractions)
			if got != tt.want {
				t.Errorf("ComputeProgress() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMissedWorkingDays(t *testing.T) {
	start := d(2024, 4, 1)

	tests := []struct {
		name      string
		patient   Patient
		fractions []*Fraction
		today     string
		want      int
	}{
		{"not started", Patient{}, nil, "2024-04-10", 0},
		{"starts tomorrow", Patient{TreatmentStartDate: ptr(d(2024, 4, 11))}, nil, "2024-04-10", 0},
		{"discharged", Patient{TreatmentStartDate: ptr(start), DischargeDate: ptr(d(2024, 4, 5))}, nil, "2024-04-10", 0},
		{"two missed", Patient{TreatmentStartDate: ptr(start)}, delivered(6, 2), "2024-04-10", 2},
		{"none missed", Patient{TreatmentStartDate: ptr(start)}, delivered(8, 0), "2024-04-10", 0},
		{"clamped at zero", Patient{TreatmentStartDate: ptr(start)}, delivered(12, 0), "2024-04-10", 0},
		{"weekend today", Patient{TreatmentStartDate: ptr(start)}, delivered(3, 2), "2024-04-07", 2},
		{"discharge day", Patient{TreatmentStartDate: ptr(start), DischargeDate: ptr(d(2024, 4, 5))}, delivered(4, 1), "2024-04-05", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			today, _ := ParseDate(tt.today)
			if got := MissedWorkingDays(&tt.patient, tt.fractions, today); got != tt.want {
				t.Errorf("MissedWorkingDays() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFractionCounts(t *testing.T) {
	fractions := []*Fraction{
		{IsMissed: true},
		{IsPostponed: true},
		{IsPostponed: true, IsMissed: true},
		{},
	}
	missed, postponed := FractionCounts(fractions)
	if missed != 2 || postponed != 2 {
		t.Errorf("expected 2 missed and 2 postponed, got %d and %d", missed, postponed)
	}
}
