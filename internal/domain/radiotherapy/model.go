package radiotherapy

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. Date fields hold calendar days at
// midnight UTC. DischargeDate is derived from the fraction set but persisted.
type Patient struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	LastName             *string    `db:"last_name" json:"last_name,omitempty"`
	FirstName            *string    `db:"first_name" json:"first_name,omitempty"`
	MiddleName           *string    `db:"middle_name" json:"middle_name,omitempty"`
	BirthDate            *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender               *string    `db:"gender" json:"gender,omitempty"`
	Diagnosis            *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	TNMStaging           *string    `db:"tnm_staging" json:"tnm_staging,omitempty"`
	DiseaseStage         *string    `db:"disease_stage" json:"disease_stage,omitempty"`
	ClinicalGroup        *string    `db:"clinical_group" json:"clinical_group,omitempty"`
	TreatmentType        *string    `db:"treatment_type" json:"treatment_type,omitempty"`
	TreatmentPhase       *string    `db:"treatment_phase" json:"treatment_phase,omitempty"`
	IrradiationZone      *string    `db:"irradiation_zone" json:"irradiation_zone,omitempty"`
	TotalFractions       *int       `db:"total_fractions" json:"total_fractions,omitempty"`
	DosePerFraction      *float64   `db:"dose_per_fraction" json:"dose_per_fraction,omitempty"`
	ReceivedDose         *float64   `db:"received_dose" json:"received_dose,omitempty"`
	CTSimulationDate     *time.Time `db:"ct_simulation_date" json:"ct_simulation_date,omitempty"`
	TreatmentStartDate   *time.Time `db:"treatment_start_date" json:"treatment_start_date,omitempty"`
	DischargeDate        *time.Time `db:"discharge_date" json:"discharge_date,omitempty"`
	LastBloodTestDate    *time.Time `db:"last_blood_test_date" json:"last_blood_test_date,omitempty"`
	HistologyNumber      *string    `db:"histology_number" json:"histology_number,omitempty"`
	HistologyDate        *time.Time `db:"histology_date" json:"histology_date,omitempty"`
	HistologyDescription *string    `db:"histology_description" json:"histology_description,omitempty"`
	InpatientStatus      *string    `db:"inpatient_status" json:"inpatient_status,omitempty"`
	WardNumber           *int       `db:"ward_number" json:"ward_number,omitempty"`
	PriorRadiation       *string    `db:"prior_radiation" json:"prior_radiation,omitempty"`
	Notes                *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins last, first and middle name, skipping blanks.
func (p *Patient) FullName() string {
	name := ""
	for _, part := range []*string{p.LastName, p.FirstName, p.MiddleName} {
		if part == nil || *part == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += *part
	}
	return name
}

// Fraction maps to the fraction table: one scheduled or delivered dose.
// OriginalDate is written on the first move and never again.
type Fraction struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	Date              time.Time  `db:"fraction_date" json:"date"`
	Dose              float64    `db:"dose" json:"dose"`
	Delivered         bool       `db:"delivered" json:"delivered"`
	ConfirmedByDoctor bool       `db:"confirmed_by_doctor" json:"confirmed_by_doctor"`
	IsPostponed       bool       `db:"is_postponed" json:"is_postponed"`
	OriginalDate      *time.Time `db:"original_date" json:"original_date,omitempty"`
	Reason            string     `db:"reason" json:"reason"`
	IsMissed          bool       `db:"is_missed" json:"is_missed"`
	Note              *string    `db:"note" json:"note,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// MedicalIncapacity maps to the medical_incapacity table (MVTN certificate).
type MedicalIncapacity struct {
	ID                       uuid.UUID  `db:"id" json:"id"`
	PatientID                uuid.UUID  `db:"patient_id" json:"patient_id"`
	MVTNumber                *string    `db:"mvt_number" json:"mvt_number,omitempty"`
	StartDate                *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate                  *time.Time `db:"end_date" json:"end_date,omitempty"`
	NoEmploymentRelation     bool       `db:"no_employment_relation" json:"no_employment_relation"`
	NoEmploymentRelationText *string    `db:"no_employment_relation_text" json:"no_employment_relation_text,omitempty"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at" json:"updated_at"`
}

// Stage is the coarse workflow label derived from a patient's dates.
type Stage string

const (
	StageNew               Stage = "new"
	StageCTSimulation      Stage = "ct_simulation"
	StageTreatmentUpcoming Stage = "treatment_upcoming"
	StageInTreatment       Stage = "in_treatment"
	StageDischargePrep     Stage = "discharge_prep"
	StageArchived          Stage = "archived"
)

var validStages = map[Stage]bool{
	StageNew: true, StageCTSimulation: true, StageTreatmentUpcoming: true,
	StageInTreatment: true, StageDischargePrep: true, StageArchived: true,
}

// ParseStage accepts the wire form of a stage label.
func ParseStage(s string) (Stage, bool) {
	st := Stage(s)
	return st, validStages[st]
}

// Progress is the delivered-fraction tally for one patient.
type Progress struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Remaining  int     `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

// FractionEdit carries a staff edit of a single fraction. Nil fields are left
// untouched.
type FractionEdit struct {
	Date              *time.Time `json:"date,omitempty"`
	Dose              *float64   `json:"dose,omitempty"`
	Delivered         *bool      `json:"delivered,omitempty"`
	ConfirmedByDoctor *bool      `json:"confirmed_by_doctor,omitempty"`
	IsMissed          *bool      `json:"is_missed,omitempty"`
	Reason            *string    `json:"reason,omitempty"`
	Note              *string    `json:"note,omitempty"`
}

// ReconcileResult describes one discharge-date reconciliation.
type ReconcileResult struct {
	PatientID   uuid.UUID  `json:"patient_id"`
	PatientName string     `json:"patient_name,omitempty"`
	Previous    *time.Time `json:"previous,omitempty"`
	Discharge   *time.Time `json:"discharge_date"`
	Changed     bool       `json:"changed"`
}

// ReconcileReport summarises a bulk sweep.
type ReconcileReport struct {
	DryRun  bool               `json:"dry_run"`
	Checked int                `json:"checked"`
	Updated int                `json:"updated"`
	Results []*ReconcileResult `json:"results"`
}

// TreatmentSummary is the patient-detail read model.
type TreatmentSummary struct {
	Patient            *Patient           `json:"patient"`
	Stage              Stage              `json:"stage"`
	InTreatment        bool               `json:"in_treatment"`
	Progress           Progress           `json:"progress"`
	MissedWorkingDays  int                `json:"missed_working_days"`
	MissedFractions    int                `json:"missed_fractions"`
	PostponedFractions int                `json:"postponed_fractions"`
	NextBloodTestDue   *time.Time         `json:"next_blood_test_due,omitempty"`
	LatestIncapacity   *MedicalIncapacity `json:"latest_incapacity,omitempty"`
	IncapacityDue      *time.Time         `json:"incapacity_renewal_due,omitempty"`
	DiagnosisText      string             `json:"diagnosis_text"`
	Fractions          []*Fraction        `json:"fractions"`
}
