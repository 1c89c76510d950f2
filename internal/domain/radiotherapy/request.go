package radiotherapy

import (
	"time"

	"github.com/google/uuid"
)

// PatientRequest is the JSON body for creating and updating a patient. Dates
// are plain strings so clients may send "2024-04-01" or "01.04.2024".
type PatientRequest struct {
	LastName             *string  `json:"last_name"`
	FirstName            *string  `json:"first_name"`
	MiddleName           *string  `json:"middle_name"`
	BirthDate            *string  `json:"birth_date"`
	Gender               *string  `json:"gender"`
	Diagnosis            *string  `json:"diagnosis"`
	TNMStaging           *string  `json:"tnm_staging"`
	DiseaseStage         *string  `json:"disease_stage"`
	ClinicalGroup        *string  `json:"clinical_group"`
	TreatmentType        *string  `json:"treatment_type"`
	TreatmentPhase       *string  `json:"treatment_phase"`
	IrradiationZone      *string  `json:"irradiation_zone"`
	TotalFractions       *int     `json:"total_fractions"`
	DosePerFraction      *float64 `json:"dose_per_fraction"`
	ReceivedDose         *float64 `json:"received_dose"`
	CTSimulationDate     *string  `json:"ct_simulation_date"`
	TreatmentStartDate   *string  `json:"treatment_start_date"`
	DischargeDate        *string  `json:"discharge_date"`
	LastBloodTestDate    *string  `json:"last_blood_test_date"`
	HistologyNumber      *string  `json:"histology_number"`
	HistologyDate        *string  `json:"histology_date"`
	HistologyDescription *string  `json:"histology_description"`
	InpatientStatus      *string  `json:"inpatient_status"`
	WardNumber           *int     `json:"ward_number"`
	PriorRadiation       *string  `json:"prior_radiation"`
	Notes                *string  `json:"notes"`
}

func optionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := ParseDate(*s)
	if err != nil {
		return nil, invalid(field, "%v", err)
	}
	return &d, nil
}

// Patient converts the request into a Patient with the given id.
func (r *PatientRequest) Patient(id uuid.UUID) (*Patient, error) {
	p := &Patient{
		ID:                   id,
		LastName:             r.LastName,
		FirstName:            r.FirstName,
		MiddleName:           r.MiddleName,
		Gender:               r.Gender,
		Diagnosis:            r.Diagnosis,
		TNMStaging:           r.TNMStaging,
		DiseaseStage:         r.DiseaseStage,
		ClinicalGroup:        r.ClinicalGroup,
		TreatmentType:        r.TreatmentType,
		TreatmentPhase:       r.TreatmentPhase,
		IrradiationZone:      r.IrradiationZone,
		TotalFractions:       r.TotalFractions,
		DosePerFraction:      r.DosePerFraction,
		ReceivedDose:         r.ReceivedDose,
		HistologyNumber:      r.HistologyNumber,
		HistologyDescription: r.HistologyDescription,
		InpatientStatus:      r.InpatientStatus,
		WardNumber:           r.WardNumber,
		PriorRadiation:       r.PriorRadiation,
		Notes:                r.Notes,
	}

	dates := []struct {
		field string
		in    *string
		out   **time.Time
	}{
		{"birth_date", r.BirthDate, &p.BirthDate},
		{"ct_simulation_date", r.CTSimulationDate, &p.CTSimulationDate},
		{"treatment_start_date", r.TreatmentStartDate, &p.TreatmentStartDate},
		{"discharge_date", r.DischargeDate, &p.DischargeDate},
		{"last_blood_test_date", r.LastBloodTestDate, &p.LastBloodTestDate},
		{"histology_date", r.HistologyDate, &p.HistologyDate},
	}
	for _, d := range dates {
		v, err := optionalDate(d.field, d.in)
		if err != nil {
			return nil, err
		}
		*d.out = v
	}
	return p, nil
}

// FractionEditRequest is the JSON body of PUT /fractions/:id.
type FractionEditRequest struct {
	Date              *string  `json:"date"`
	Dose              *float64 `json:"dose"`
	Delivered         *bool    `json:"delivered"`
	ConfirmedByDoctor *bool    `json:"confirmed_by_doctor"`
	IsMissed          *bool    `json:"is_missed"`
	Reason            *string  `json:"reason"`
	Note              *string  `json:"note"`
}

func (r *FractionEditRequest) Edit() (FractionEdit, error) {
	date, err := optionalDate("date", r.Date)
	if err != nil {
		return FractionEdit{}, err
	}
	return FractionEdit{
		Date:              date,
		Dose:              r.Dose,
		Delivered:         r.Delivered,
		ConfirmedByDoctor: r.ConfirmedByDoctor,
		IsMissed:          r.IsMissed,
		Reason:            r.Reason,
		Note:              r.Note,
	}, nil
}

// PostponeRequest is the JSON body of POST /fractions/:id/postpone.
type PostponeRequest struct {
	NewDate string `json:"new_date"`
	Reason  string `json:"reason"`
}

// ReasonRequest carries an optional free-text reason.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// ConfirmRequest lists the fractions to confirm in bulk.
type ConfirmRequest struct {
	FractionIDs []uuid.UUID `json:"fraction_ids"`
}

// IncapacityRequest is the JSON body for MVTN certificates.
type IncapacityRequest struct {
	MVTNumber                *string `json:"mvt_number"`
	StartDate                *string `json:"start_date"`
	EndDate                  *string `json:"end_date"`
	NoEmploymentRelation     bool    `json:"no_employment_relation"`
	NoEmploymentRelationText *string `json:"no_employment_relation_text"`
}

func (r *IncapacityRequest) Incapacity(id, patientID uuid.UUID) (*MedicalIncapacity, error) {
	start, err := optionalDate("start_date", r.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := optionalDate("end_date", r.EndDate)
	if err != nil {
		return nil, err
	}
	return &MedicalIncapacity{
		ID:                       id,
		PatientID:                patientID,
		MVTNumber:                r.MVTNumber,
		StartDate:                start,
		EndDate:                  end,
		NoEmploymentRelation:     r.NoEmploymentRelation,
		NoEmploymentRelationText: r.NoEmploymentRelationText,
	}, nil
}
