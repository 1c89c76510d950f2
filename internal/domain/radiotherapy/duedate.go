package radiotherapy

import "time"

// Blood tests roll forward off a weekend while MVTN renewals roll back onto
// the preceding Friday. The two rules are intentionally different.

// NextBloodTestDue uses the default ten day interval.
func NextBloodTestDue(p *Patient, today time.Time) *time.Time {
	return DefaultPolicy.NextBloodTestDue(p, today)
}

// NextBloodTestDue returns last test + interval, moved to Monday when it
// lands on a weekend. Nil without a recorded test or outside treatment.
func (pol Policy) NextBloodTestDue(p *Patient, today time.Time) *time.Time {
	if p.LastBloodTestDate == nil || !IsInTreatment(p, today) {
		return nil
	}
	due := RollForwardToMonday(AddDays(*p.LastBloodTestDate, pol.BloodTestIntervalDays))
	return &due
}

// BloodTestOverdue is the dashboard alert: the patient is in treatment
// without a scheduled discharge and the last test (or the start of treatment
// when no test is recorded) is at least one interval old.
func (pol Policy) BloodTestOverdue(p *Patient, today time.Time) bool {
	today = Day(today)
	if p.TreatmentStartDate == nil || Day(*p.TreatmentStartDate).After(today) || p.DischargeDate != nil {
		return false
	}
	ref := *p.TreatmentStartDate
	if p.LastBloodTestDate != nil {
		ref = *p.LastBloodTestDate
	}
	return !AddDays(ref, pol.BloodTestIntervalDays).After(today)
}

// RollForwardToMonday maps Saturday and Sunday to the following Monday.
func RollForwardToMonday(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return AddDays(d, 2)
	case time.Sunday:
		return AddDays(d, 1)
	}
	return Day(d)
}

// RollBackToFriday maps Saturday and Sunday to the preceding Friday.
func RollBackToFriday(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return AddDays(d, -1)
	case time.Sunday:
		return AddDays(d, -2)
	}
	return Day(d)
}

// IncapacityRenewalDue is the last working day on which a certificate ending
// on end can be renewed.
func IncapacityRenewalDue(end time.Time) time.Time {
	return RollBackToFriday(end)
}

// LatestIncapacity picks the certificate with the latest end date. Records
// without an end date are ignored.
func LatestIncapacity(list []*MedicalIncapacity) *MedicalIncapacity {
	var latest *MedicalIncapacity
	for _, mi := range list {
		if mi.EndDate == nil {
			continue
		}
		if latest == nil || mi.EndDate.After(*latest.EndDate) {
			latest = mi
		}
	}
	return latest
}

// IncapacityExpiringSoon is true when the certificate is still running and
// its renewal day falls within the warning window.
func (pol Policy) IncapacityExpiringSoon(mi *MedicalIncapacity, today time.Time) bool {
	if mi == nil || mi.EndDate == nil {
		return false
	}
	today = Day(today)
	if Day(*mi.EndDate).Before(today) {
		return false
	}
	return !IncapacityRenewalDue(*mi.EndDate).After(AddDays(today, pol.IncapacityWarningDays))
}

// ValidateIncapacity checks the certificate period.
func ValidateIncapacity(mi *MedicalIncapacity) error {
	if mi.StartDate != nil && mi.EndDate != nil && mi.EndDate.Before(*mi.StartDate) {
		return invalid("end_date", "must not be before start_date")
	}
	if mi.MVTNumber != nil && len(*mi.MVTNumber) > 19 {
		return invalid("mvt_number", "must be at most 19 characters")
	}
	return nil
}
