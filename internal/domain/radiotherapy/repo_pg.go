package radiotherapy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/radonc/rtcare/internal/platform/db"
)

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, last_name, first_name, middle_name, birth_date, gender,
	diagnosis, tnm_staging, disease_stage, clinical_group,
	treatment_type, treatment_phase, irradiation_zone,
	total_fractions, dose_per_fraction, received_dose,
	ct_simulation_date, treatment_start_date, discharge_date, last_blood_test_date,
	histology_number, histology_date, histology_description,
	inpatient_status, ward_number, prior_radiation, notes,
	created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.LastName, &p.FirstName, &p.MiddleName, &p.BirthDate, &p.Gender,
		&p.Diagnosis, &p.TNMStaging, &p.DiseaseStage, &p.ClinicalGroup,
		&p.TreatmentType, &p.TreatmentPhase, &p.IrradiationZone,
		&p.TotalFractions, &p.DosePerFraction, &p.ReceivedDose,
		&p.CTSimulationDate, &p.TreatmentStartDate, &p.DischargeDate, &p.LastBloodTestDate,
		&p.HistologyNumber, &p.HistologyDate, &p.HistologyDescription,
		&p.InpatientStatus, &p.WardNumber, &p.PriorRadiation, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) queryPatients(ctx context.Context, sql string, args ...interface{}) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, last_name, first_name, middle_name, birth_date, gender,
			diagnosis, tnm_staging, disease_stage, clinical_group,
			treatment_type, treatment_phase, irradiation_zone,
			total_fractions, dose_per_fraction, received_dose,
			ct_simulation_date, treatment_start_date, discharge_date, last_blood_test_date,
			histology_number, histology_date, histology_description,
			inpatient_status, ward_number, prior_radiation, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
		RETURNING created_at, updated_at`,
		p.ID, p.LastName, p.FirstName, p.MiddleName, p.BirthDate, p.Gender,
		p.Diagnosis, p.TNMStaging, p.DiseaseStage, p.ClinicalGroup,
		p.TreatmentType, p.TreatmentPhase, p.IrradiationZone,
		p.TotalFractions, p.DosePerFraction, p.ReceivedDose,
		p.CTSimulationDate, p.TreatmentStartDate, p.DischargeDate, p.LastBloodTestDate,
		p.HistologyNumber, p.HistologyDate, p.HistologyDescription,
		p.InpatientStatus, p.WardNumber, p.PriorRadiation, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "patient")
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET last_name=$2, first_name=$3, middle_name=$4, birth_date=$5, gender=$6,
			diagnosis=$7, tnm_staging=$8, disease_stage=$9, clinical_group=$10,
			treatment_type=$11, treatment_phase=$12, irradiation_zone=$13,
			total_fractions=$14, dose_per_fraction=$15, received_dose=$16,
			ct_simulation_date=$17, treatment_start_date=$18, discharge_date=$19, last_blood_test_date=$20,
			histology_number=$21, histology_date=$22, histology_description=$23,
			inpatient_status=$24, ward_number=$25, prior_radiation=$26, notes=$27,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.LastName, p.FirstName, p.MiddleName, p.BirthDate, p.Gender,
		p.Diagnosis, p.TNMStaging, p.DiseaseStage, p.ClinicalGroup,
		p.TreatmentType, p.TreatmentPhase, p.IrradiationZone,
		p.TotalFractions, p.DosePerFraction, p.ReceivedDose,
		p.CTSimulationDate, p.TreatmentStartDate, p.DischargeDate, p.LastBloodTestDate,
		p.HistologyNumber, p.HistologyDate, p.HistologyDescription,
		p.InpatientStatus, p.WardNumber, p.PriorRadiation, p.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patient %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.queryPatients(ctx, `SELECT `+patientCols+` FROM patient ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *patientRepoPG) ListAll(ctx context.Context) ([]*Patient, error) {
	return r.queryPatients(ctx, `SELECT `+patientCols+` FROM patient ORDER BY last_name, first_name`)
}

func (r *patientRepoPG) ListWithFractions(ctx context.Context) ([]*Patient, error) {
	return r.queryPatients(ctx, `SELECT `+patientCols+` FROM patient p
		WHERE EXISTS (SELECT 1 FROM fraction f WHERE f.patient_id = p.id)
		ORDER BY last_name, first_name`)
}

func (r *patientRepoPG) UpdateDischargeDate(ctx context.Context, id uuid.UUID, discharge *time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE patient SET discharge_date=$2, updated_at=NOW() WHERE id = $1`, id, discharge)
	return err
}

func (r *patientRepoPG) UpdateLastBloodTest(ctx context.Context, id uuid.UUID, date time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE patient SET last_blood_test_date=$2, updated_at=NOW() WHERE id = $1`, id, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	return nil
}

// =========== Fraction Repository ===========

type fractionRepoPG struct{ pool *pgxpool.Pool }

func NewFractionRepoPG(pool *pgxpool.Pool) FractionRepository {
	return &fractionRepoPG{pool: pool}
}

func (r *fractionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const fractionCols = `id, patient_id, fraction_date, dose, delivered, confirmed_by_doctor,
	is_postponed, original_date, reason, is_missed, note, created_at, updated_at`

func (r *fractionRepoPG) scanFraction(row pgx.Row) (*Fraction, error) {
	var f Fraction
	err := row.Scan(&f.ID, &f.PatientID, &f.Date, &f.Dose, &f.Delivered, &f.ConfirmedByDoctor,
		&f.IsPostponed, &f.OriginalDate, &f.Reason, &f.IsMissed, &f.Note, &f.CreatedAt, &f.UpdatedAt)
	return &f, err
}

func (r *fractionRepoPG) queryFractions(ctx context.Context, sql string, args ...interface{}) ([]*Fraction, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Fraction
	for rows.Next() {
		f, err := r.scanFraction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (r *fractionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Fraction, error) {
	f, err := r.scanFraction(r.conn(ctx).QueryRow(ctx, `SELECT `+fractionCols+` FROM fraction WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "fraction")
	}
	return f, nil
}

func (r *fractionRepoPG) Update(ctx context.Context, f *Fraction) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE fraction SET fraction_date=$2, dose=$3, delivered=$4, confirmed_by_doctor=$5,
			is_postponed=$6, original_date=$7, reason=$8, is_missed=$9, note=$10, updated_at=NOW()
		WHERE id = $1`,
		f.ID, f.Date, f.Dose, f.Delivered, f.ConfirmedByDoctor,
		f.IsPostponed, f.OriginalDate, f.Reason, f.IsMissed, f.Note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fraction %s: %w", f.ID, ErrNotFound)
	}
	return nil
}

func (r *fractionRepoPG) ReplaceForPatient(ctx context.Context, patientID uuid.UUID, fractions []*Fraction) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM fraction WHERE patient_id = $1`, patientID); err != nil {
		return fmt.Errorf("delete fractions: %w", err)
	}
	for _, f := range fractions {
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		f.PatientID = patientID
		err := q.QueryRow(ctx, `
			INSERT INTO fraction (id, patient_id, fraction_date, dose, delivered, confirmed_by_doctor,
				is_postponed, original_date, reason, is_missed, note)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			RETURNING created_at, updated_at`,
			f.ID, f.PatientID, f.Date, f.Dose, f.Delivered, f.ConfirmedByDoctor,
			f.IsPostponed, f.OriginalDate, f.Reason, f.IsMissed, f.Note,
		).Scan(&f.CreatedAt, &f.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert fraction %s: %w", f.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}

func (r *fractionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Fraction, error) {
	return r.queryFractions(ctx, `SELECT `+fractionCols+` FROM fraction WHERE patient_id = $1 ORDER BY fraction_date, created_at`, patientID)
}

func (r *fractionRepoPG) ListByDate(ctx context.Context, date time.Time) ([]*Fraction, error) {
	return r.queryFractions(ctx, `SELECT `+fractionCols+` FROM fraction WHERE fraction_date = $1 ORDER BY patient_id`, date)
}

func (r *fractionRepoPG) SetDelivered(ctx context.Context, ids []uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE fraction SET delivered=TRUE, updated_at=NOW() WHERE id = ANY($1::uuid[])`, idStrings(ids))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *fractionRepoPG) SetConfirmedByDoctor(ctx context.Context, ids []uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE fraction SET confirmed_by_doctor=TRUE, updated_at=NOW() WHERE id = ANY($1::uuid[])`, idStrings(ids))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *fractionRepoPG) ConfirmOnDate(ctx context.Context, date time.Time) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE fraction SET delivered=TRUE, confirmed_by_doctor=TRUE, updated_at=NOW()
		WHERE fraction_date = $1`, date)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// =========== Medical Incapacity Repository ===========

type incapacityRepoPG struct{ pool *pgxpool.Pool }

func NewIncapacityRepoPG(pool *pgxpool.Pool) IncapacityRepository {
	return &incapacityRepoPG{pool: pool}
}

func (r *incapacityRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const incapacityCols = `id, patient_id, mvt_number, start_date, end_date,
	no_employment_relation, no_employment_relation_text, created_at, updated_at`

func (r *incapacityRepoPG) scanIncapacity(row pgx.Row) (*MedicalIncapacity, error) {
	var mi MedicalIncapacity
	err := row.Scan(&mi.ID, &mi.PatientID, &mi.MVTNumber, &mi.StartDate, &mi.EndDate,
		&mi.NoEmploymentRelation, &mi.NoEmploymentRelationText, &mi.CreatedAt, &mi.UpdatedAt)
	return &mi, err
}

func (r *incapacityRepoPG) queryIncapacities(ctx context.Context, sql string, args ...interface{}) ([]*MedicalIncapacity, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MedicalIncapacity
	for rows.Next() {
		mi, err := r.scanIncapacity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, mi)
	}
	return items, rows.Err()
}

func (r *incapacityRepoPG) Create(ctx context.Context, mi *MedicalIncapacity) error {
	mi.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_incapacity (id, patient_id, mvt_number, start_date, end_date,
			no_employment_relation, no_employment_relation_text)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		mi.ID, mi.PatientID, mi.MVTNumber, mi.StartDate, mi.EndDate,
		mi.NoEmploymentRelation, mi.NoEmploymentRelationText,
	).Scan(&mi.CreatedAt, &mi.UpdatedAt)
}

func (r *incapacityRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalIncapacity, error) {
	mi, err := r.scanIncapacity(r.conn(ctx).QueryRow(ctx, `SELECT `+incapacityCols+` FROM medical_incapacity WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "medical incapacity")
	}
	return mi, nil
}

func (r *incapacityRepoPG) Update(ctx context.Context, mi *MedicalIncapacity) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_incapacity SET mvt_number=$2, start_date=$3, end_date=$4,
			no_employment_relation=$5, no_employment_relation_text=$6, updated_at=NOW()
		WHERE id = $1`,
		mi.ID, mi.MVTNumber, mi.StartDate, mi.EndDate,
		mi.NoEmploymentRelation, mi.NoEmploymentRelationText)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("medical incapacity %s: %w", mi.ID, ErrNotFound)
	}
	return nil
}

func (r *incapacityRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_incapacity WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("medical incapacity %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *incapacityRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalIncapacity, error) {
	return r.queryIncapacities(ctx, `SELECT `+incapacityCols+` FROM medical_incapacity
		WHERE patient_id = $1 ORDER BY end_date DESC NULLS LAST, created_at DESC`, patientID)
}

func (r *incapacityRepoPG) LatestByPatient(ctx context.Context) (map[uuid.UUID]*MedicalIncapacity, error) {
	items, err := r.queryIncapacities(ctx, `SELECT DISTINCT ON (patient_id) `+incapacityCols+`
		FROM medical_incapacity
		WHERE end_date IS NOT NULL
		ORDER BY patient_id, end_date DESC`)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*MedicalIncapacity, len(items))
	for _, mi := range items {
		out[mi.PatientID] = mi
	}
	return out, nil
}
