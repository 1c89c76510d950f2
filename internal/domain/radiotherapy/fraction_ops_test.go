package radiotherapy

import (
	"testing"

	"github.com/google/uuid"
)

func TestPostpone_RecordsOriginalDateOnce(t *testing.T) {
	today := d(2024, 4, 1)
	f := &Fraction{ID: uuid.New(), Date: d(2024, 4, 3), Dose: 2}

	first, err := Postpone(f, d(2024, 4, 10), "machine service", today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Date.Equal(d(2024, 4, 10)) || !first.IsPostponed || first.Reason != "machine service" {
		t.Errorf("unexpected postponed fraction: %+v", first)
	}
	if first.OriginalDate == nil || !first.OriginalDate.Equal(d(2024, 4, 3)) {
		t.Errorf("expected original date 2024-04-03, got %v", first.OriginalDate)
	}

	second, err := Postpone(first, d(2024, 4, 17), "patient request", today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.OriginalDate.Equal(d(2024, 4, 3)) {
		t.Errorf("original date overwritten: %v", second.OriginalDate)
	}
	if second.Reason != "patient request" {
		t.Errorf("expected latest reason, got %q", second.Reason)
	}

	if f.IsPostponed || f.OriginalDate != nil || !f.Date.Equal(d(2024, 4, 3)) {
		t.Errorf("input fraction was mutated: %+v", f)
	}
}

func TestPostpone_IntoPastRejected(t *testing.T) {
	f := &Fraction{Date: d(2024, 4, 10)}
	_, err := Postpone(f, d(2024, 4, 5), "", d(2024, 4, 8))
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.OriginalDate != nil || !f.Date.Equal(d(2024, 4, 10)) {
		t.Error("fraction changed despite rejection")
	}

	f.IsMissed = true
	if _, err := Postpone(f, d(2024, 4, 5), "", d(2024, 4, 8)); err != nil {
		t.Errorf("missed fraction may move into the past: %v", err)
	}
}

func TestPostpone_ToTodayAllowed(t *testing.T) {
	f := &Fraction{Date: d(2024, 4, 5)}
	if _, err := Postpone(f, d(2024, 4, 8), "", d(2024, 4, 8)); err != nil {
		t.Errorf("moving to today should be allowed: %v", err)
	}
}

func TestMarkMissed(t *testing.T) {
	f := &Fraction{Date: d(2024, 4, 3), Reason: "old"}
	out := MarkMissed(f, "fever")
	if !out.IsMissed || out.Reason != "fever" || !out.Date.Equal(d(2024, 4, 3)) {
		t.Errorf("unexpected result: %+v", out)
	}
	if f.IsMissed {
		t.Error("input fraction was mutated")
	}
}

func TestApplyEdit(t *testing.T) {
	today := d(2024, 4, 8)
	f := &Fraction{Date: d(2024, 4, 9), Dose: 2}

	out, moved, err := ApplyEdit(f, FractionEdit{Dose: ptr(2.5), Note: ptr("boost")}, today)
	if err != nil || moved {
		t.Fatalf("unexpected result: moved=%v err=%v", moved, err)
	}
	if out.Dose != 2.5 || out.Note == nil || *out.Note != "boost" {
		t.Errorf("edit not applied: %+v", out)
	}

	out, moved, err = ApplyEdit(f, FractionEdit{Date: ptr(d(2024, 4, 12))}, today)
	if err != nil || !moved {
		t.Fatalf("expected move, got moved=%v err=%v", moved, err)
	}
	if !out.OriginalDate.Equal(d(2024, 4, 9)) {
		t.Errorf("expected original date recorded, got %v", out.OriginalDate)
	}

	_, moved, err = ApplyEdit(f, FractionEdit{Date: ptr(d(2024, 4, 9))}, today)
	if err != nil || moved {
		t.Errorf("same date should not count as a move: moved=%v err=%v", moved, err)
	}
}

func TestApplyEdit_PastDateNeedsMissedFlag(t *testing.T) {
	today := d(2024, 4, 8)
	f := &Fraction{Date: d(2024, 4, 9), Dose: 2}

	if _, _, err := ApplyEdit(f, FractionEdit{Date: ptr(d(2024, 4, 2))}, today); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	out, moved, err := ApplyEdit(f, FractionEdit{Date: ptr(d(2024, 4, 2)), IsMissed: ptr(true)}, today)
	if err != nil || !moved {
		t.Fatalf("missed fraction should move into the past: moved=%v err=%v", moved, err)
	}
	if !out.IsMissed {
		t.Error("expected missed flag set")
	}
}

func TestApplyEdit_RejectsNonPositiveDose(t *testing.T) {
	f := &Fraction{Date: d(2024, 4, 9), Dose: 2}
	if _, _, err := ApplyEdit(f, FractionEdit{Dose: ptr(0.0)}, d(2024, 4, 8)); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestReconcile(t *testing.T) {
	p := &Patient{ID: uuid.New(), LastName: ptr("Shevchenko")}

	res := Reconcile(p, nil)
	if res.Discharge != nil || res.Changed {
		t.Errorf("empty set should be a no-op, got %+v", res)
	}

	fractions := []*Fraction{{Date: d(2024, 4, 1)}, {Date: d(2024, 4, 12)}}
	res = Reconcile(p, fractions)
	if !res.Changed || !res.Discharge.Equal(d(2024, 4, 12)) {
		t.Errorf("expected change to 2024-04-12, got %+v", res)
	}
	if res.PatientName != "Shevchenko" {
		t.Errorf("expected patient name, got %q", res.PatientName)
	}

	p.DischargeDate = res.Discharge
	again := Reconcile(p, fractions)
	if again.Changed {
		t.Error("second reconcile without changes should be a no-op")
	}
	if !again.Discharge.Equal(*res.Discharge) {
		t.Errorf("second reconcile changed date: %v", again.Discharge)
	}
}

func TestReconcile_AfterPostponementMovesDischarge(t *testing.T) {
	fractions, _ := GenerateSchedule(d(2024, 4, 1), 5, 2.0)
	p := &Patient{ID: uuid.New(), DischargeDate: LastFractionDate(fractions)}

	moved, err := Postpone(fractions[4], d(2024, 4, 8), "holiday", d(2024, 4, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fractions[4] = moved

	res := Reconcile(p, fractions)
	if !res.Changed || !res.Discharge.Equal(d(2024, 4, 8)) {
		t.Errorf("expected discharge 2024-04-08, got %+v", res)
	}
	if !res.Previous.Equal(d(2024, 4, 5)) {
		t.Errorf("expected previous 2024-04-05, got %v", res.Previous)
	}
}
