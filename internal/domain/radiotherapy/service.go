package radiotherapy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	patients     PatientRepository
	fractions    FractionRepository
	incapacities IncapacityRepository
	tx           TxRunner
	policy       Policy
	logger       zerolog.Logger
}

func NewService(
	patients PatientRepository,
	fractions FractionRepository,
	incapacities IncapacityRepository,
	tx TxRunner,
	policy Policy,
	logger zerolog.Logger,
) *Service {
	if policy.BloodTestIntervalDays <= 0 {
		policy.BloodTestIntervalDays = DefaultPolicy.BloodTestIntervalDays
	}
	return &Service{
		patients:     patients,
		fractions:    fractions,
		incapacities: incapacities,
		tx:           tx,
		policy:       policy,
		logger:       logger.With().Str("component", "radiotherapy").Logger(),
	}
}

// Policy returns the windows the service classifies with.
func (s *Service) Policy() Policy { return s.policy }

// -- Patients --

func validatePatient(p *Patient) error {
	if p.TreatmentStartDate != nil && p.DischargeDate != nil && p.DischargeDate.Before(*p.TreatmentStartDate) {
		return invalid("discharge_date", "must not be before treatment_start_date")
	}
	if p.TotalFractions != nil && *p.TotalFractions < 0 {
		return invalid("total_fractions", "must not be negative")
	}
	if p.TotalFractions != nil && *p.TotalFractions > MaxFractions {
		return invalid("total_fractions", "must not exceed %d", MaxFractions)
	}
	if p.DosePerFraction != nil && *p.DosePerFraction < 0 {
		return invalid("dose_per_fraction", "must not be negative")
	}
	if p.WardNumber != nil && *p.WardNumber < 0 {
		return invalid("ward_number", "must not be negative")
	}
	return nil
}

// CreatePatient stores a patient and, when start date, fraction count and
// dose are all present, generates the fraction schedule in the same
// transaction.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.patients.Create(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		if !CanGenerateSchedule(p) {
			return nil
		}
		_, err := s.regenerate(ctx, p)
		return err
	})
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// UpdatePatient saves the record. A patient without fractions gets a schedule
// once the treatment plan is complete. A patient with fractions keeps its
// discharge date pinned to the last fraction.
func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.patients.Update(ctx, p); err != nil {
			return fmt.Errorf("update patient: %w", err)
		}
		existing, err := s.fractions.ListByPatient(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("list fractions: %w", err)
		}
		if len(existing) == 0 {
			if CanGenerateSchedule(p) {
				_, err = s.regenerate(ctx, p)
			}
			return err
		}
		_, err = s.applyReconcile(ctx, p, existing)
		return err
	})
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// ListPatientsByStage returns the patients whose derived stage on asOf is
// stage. Archived patients come most recently discharged first.
func (s *Service) ListPatientsByStage(ctx context.Context, stage Stage, asOf time.Time) ([]*Patient, error) {
	all, err := s.patients.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := s.policy.FilterByStage(all, stage, asOf)
	if stage == StageArchived {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].DischargeDate.After(*out[j].DischargeDate)
		})
	}
	return out, nil
}

// ListInpatients returns patients currently held on a ward.
func (s *Service) ListInpatients(ctx context.Context, asOf time.Time) ([]*Patient, error) {
	all, err := s.patients.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Patient, 0)
	for _, p := range all {
		if p.InpatientStatus == nil || !strings.EqualFold(*p.InpatientStatus, "inpatient") {
			continue
		}
		if s.policy.Stage(p, asOf) == StageArchived {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ConfirmBloodTest records a blood test taken today.
func (s *Service) ConfirmBloodTest(ctx context.Context, patientID uuid.UUID, today time.Time) (*Patient, error) {
	if err := s.patients.UpdateLastBloodTest(ctx, patientID, Day(today)); err != nil {
		return nil, err
	}
	return s.patients.GetByID(ctx, patientID)
}

// -- Schedule & discharge --

// GenerateSchedule replaces the patient's fractions with a freshly generated
// schedule and moves the discharge date to the last of them.
func (s *Service) GenerateSchedule(ctx context.Context, patientID uuid.UUID) ([]*Fraction, error) {
	var out []*Fraction
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetByID(ctx, patientID)
		if err != nil {
			return err
		}
		out, err = s.regenerate(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) regenerate(ctx context.Context, p *Patient) ([]*Fraction, error) {
	fractions, err := ScheduleForPatient(p)
	if err != nil {
		return nil, err
	}
	if err := s.fractions.ReplaceForPatient(ctx, p.ID, fractions); err != nil {
		return nil, fmt.Errorf("replace fractions: %w", err)
	}
	res, err := s.applyReconcile(ctx, p, fractions)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Int("fractions", len(fractions)).
		Time("discharge_date", *res.Discharge).
		Msg("fraction schedule generated")
	return fractions, nil
}

// ReconcileDischargeDate pins the discharge date to the last fraction. With
// no fractions the stored date is left alone and the result carries a nil
// date.
func (s *Service) ReconcileDischargeDate(ctx context.Context, patientID uuid.UUID) (*ReconcileResult, error) {
	var res *ReconcileResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetByID(ctx, patientID)
		if err != nil {
			return err
		}
		res, err = s.reconcile(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) reconcile(ctx context.Context, p *Patient) (*ReconcileResult, error) {
	fractions, err := s.fractions.ListByPatient(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list fractions: %w", err)
	}
	return s.applyReconcile(ctx, p, fractions)
}

func (s *Service) applyReconcile(ctx context.Context, p *Patient, fractions []*Fraction) (*ReconcileResult, error) {
	res := Reconcile(p, fractions)
	if !res.Changed {
		return res, nil
	}
	if err := s.patients.UpdateDischargeDate(ctx, p.ID, res.Discharge); err != nil {
		return nil, fmt.Errorf("update discharge date: %w", err)
	}
	p.DischargeDate = res.Discharge
	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Time("discharge_date", *res.Discharge).
		Msg("discharge date reconciled")
	return res, nil
}

// ReconcileAllDischargeDates sweeps every patient with fractions, each in its
// own transaction. In dry-run mode nothing is written and the report lists
// the changes that would be made.
func (s *Service) ReconcileAllDischargeDates(ctx context.Context, dryRun bool) (*ReconcileReport, error) {
	patients, err := s.patients.ListWithFractions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients with fractions: %w", err)
	}

	report := &ReconcileReport{DryRun: dryRun, Results: []*ReconcileResult{}}
	for _, p := range patients {
		var res *ReconcileResult
		if dryRun {
			fractions, err := s.fractions.ListByPatient(ctx, p.ID)
			if err != nil {
				return report, fmt.Errorf("list fractions for %s: %w", p.ID, err)
			}
			res = Reconcile(p, fractions)
		} else {
			err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
				var err error
				res, err = s.reconcile(ctx, p)
				return err
			})
			if err != nil {
				return report, fmt.Errorf("reconcile %s: %w", p.ID, err)
			}
		}

		report.Checked++
		if res.Changed {
			report.Updated++
		}
		report.Results = append(report.Results, res)
	}

	s.logger.Info().
		Bool("dry_run", dryRun).
		Int("checked", report.Checked).
		Int("updated", report.Updated).
		Msg("discharge date sweep finished")
	return report, nil
}

// -- Fractions --

func (s *Service) ListFractions(ctx context.Context, patientID uuid.UUID) ([]*Fraction, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	fractions, err := s.fractions.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if fractions == nil {
		fractions = []*Fraction{}
	}
	return fractions, nil
}

func (s *Service) GetFraction(ctx context.Context, id uuid.UUID) (*Fraction, error) {
	return s.fractions.GetByID(ctx, id)
}

// mutateFraction loads a fraction, applies fn, persists the result and
// reconciles the owner, all in one transaction.
func (s *Service) mutateFraction(ctx context.Context, id uuid.UUID, fn func(f *Fraction) (*Fraction, error)) (*Fraction, error) {
	var out *Fraction
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.fractions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		out, err = fn(f)
		if err != nil {
			return err
		}
		if err := s.fractions.Update(ctx, out); err != nil {
			return fmt.Errorf("update fraction: %w", err)
		}
		p, err := s.patients.GetByID(ctx, out.PatientID)
		if err != nil {
			return err
		}
		_, err = s.reconcile(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PostponeFraction moves a fraction to newDate and reconciles the discharge
// date.
func (s *Service) PostponeFraction(ctx context.Context, id uuid.UUID, newDate time.Time, reason string, today time.Time) (*Fraction, error) {
	return s.mutateFraction(ctx, id, func(f *Fraction) (*Fraction, error) {
		return Postpone(f, newDate, reason, today)
	})
}

func (s *Service) MarkFractionMissed(ctx context.Context, id uuid.UUID, reason string) (*Fraction, error) {
	return s.mutateFraction(ctx, id, func(f *Fraction) (*Fraction, error) {
		return MarkMissed(f, reason), nil
	})
}

// EditFraction applies a staff edit. Date moves follow the same rules as
// postponement.
func (s *Service) EditFraction(ctx context.Context, id uuid.UUID, e FractionEdit, today time.Time) (*Fraction, error) {
	return s.mutateFraction(ctx, id, func(f *Fraction) (*Fraction, error) {
		out, _, err := ApplyEdit(f, e, today)
		return out, err
	})
}

// ConfirmDelivered is the nurse confirmation for a batch of fractions.
func (s *Service) ConfirmDelivered(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, invalid("fraction_ids", "at least one id is required")
	}
	return s.fractions.SetDelivered(ctx, ids)
}

// ConfirmByDoctor is the doctor confirmation for a batch of fractions.
func (s *Service) ConfirmByDoctor(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, invalid("fraction_ids", "at least one id is required")
	}
	return s.fractions.SetConfirmedByDoctor(ctx, ids)
}

// ConfirmTodayFractions marks every fraction scheduled for today delivered
// and doctor-confirmed.
func (s *Service) ConfirmTodayFractions(ctx context.Context, today time.Time) (int, error) {
	n, err := s.fractions.ConfirmOnDate(ctx, Day(today))
	if err != nil {
		return 0, fmt.Errorf("confirm fractions: %w", err)
	}
	s.logger.Info().
		Str("date", Day(today).Format("2006-01-02")).
		Int("confirmed", n).
		Msg("today's fractions confirmed")
	return n, nil
}

// -- Derived views --

func (s *Service) snapshot(ctx context.Context, patientID uuid.UUID) (*Patient, []*Fraction, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	fractions, err := s.fractions.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, nil, fmt.Errorf("list fractions: %w", err)
	}
	return p, fractions, nil
}

func (s *Service) GetDisplayStage(ctx context.Context, patientID uuid.UUID, asOf time.Time) (Stage, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return "", err
	}
	return s.policy.Stage(p, asOf), nil
}

func (s *Service) GetProgress(ctx context.Context, patientID uuid.UUID) (Progress, error) {
	p, fractions, err := s.snapshot(ctx, patientID)
	if err != nil {
		return Progress{}, err
	}
	return ComputeProgress(p, fractions), nil
}

func (s *Service) GetMissedWorkingDays(ctx context.Context, patientID uuid.UUID, asOf time.Time) (int, error) {
	p, fractions, err := s.snapshot(ctx, patientID)
	if err != nil {
		return 0, err
	}
	return MissedWorkingDays(p, fractions, asOf), nil
}

func (s *Service) GetNextBloodTestDueDate(ctx context.Context, patientID uuid.UUID, asOf time.Time) (*time.Time, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.policy.NextBloodTestDue(p, asOf), nil
}

// GetTreatmentSummary assembles the patient detail view.
func (s *Service) GetTreatmentSummary(ctx context.Context, patientID uuid.UUID, asOf time.Time) (*TreatmentSummary, error) {
	p, fractions, err := s.snapshot(ctx, patientID)
	if err != nil {
		return nil, err
	}
	incapacities, err := s.incapacities.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list incapacities: %w", err)
	}
	if fractions == nil {
		fractions = []*Fraction{}
	}

	missed, postponed := FractionCounts(fractions)
	sum := &TreatmentSummary{
		Patient:            p,
		Stage:              s.policy.Stage(p, asOf),
		InTreatment:        IsInTreatment(p, asOf),
		Progress:           ComputeProgress(p, fractions),
		MissedWorkingDays:  MissedWorkingDays(p, fractions, asOf),
		MissedFractions:    missed,
		PostponedFractions: postponed,
		NextBloodTestDue:   s.policy.NextBloodTestDue(p, asOf),
		LatestIncapacity:   LatestIncapacity(incapacities),
		DiagnosisText:      DiagnosisText(p),
		Fractions:          fractions,
	}
	if sum.LatestIncapacity != nil {
		due := IncapacityRenewalDue(*sum.LatestIncapacity.EndDate)
		sum.IncapacityDue = &due
	}
	return sum, nil
}

// Dashboard builds the daily overview.
func (s *Service) Dashboard(ctx context.Context, today time.Time) (*Dashboard, error) {
	patients, err := s.patients.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	latest, err := s.incapacities.LatestByPatient(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest incapacities: %w", err)
	}
	return s.policy.BuildDashboard(patients, latest, today), nil
}

// -- Medical incapacity --

func (s *Service) CreateIncapacity(ctx context.Context, mi *MedicalIncapacity) error {
	if mi.PatientID == uuid.Nil {
		return invalid("patient_id", "is required")
	}
	if err := ValidateIncapacity(mi); err != nil {
		return err
	}
	if _, err := s.patients.GetByID(ctx, mi.PatientID); err != nil {
		return err
	}
	return s.incapacities.Create(ctx, mi)
}

func (s *Service) GetIncapacity(ctx context.Context, id uuid.UUID) (*MedicalIncapacity, error) {
	return s.incapacities.GetByID(ctx, id)
}

func (s *Service) UpdateIncapacity(ctx context.Context, mi *MedicalIncapacity) error {
	if err := ValidateIncapacity(mi); err != nil {
		return err
	}
	return s.incapacities.Update(ctx, mi)
}

func (s *Service) DeleteIncapacity(ctx context.Context, id uuid.UUID) error {
	return s.incapacities.Delete(ctx, id)
}

func (s *Service) ListIncapacities(ctx context.Context, patientID uuid.UUID) ([]*MedicalIncapacity, error) {
	items, err := s.incapacities.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*MedicalIncapacity{}
	}
	return items, nil
}

// ExpiringIncapacities lists the certificates whose renewal day falls within
// the warning window.
func (s *Service) ExpiringIncapacities(ctx context.Context, today time.Time) ([]*IncapacityAlert, error) {
	d, err := s.Dashboard(ctx, today)
	if err != nil {
		return nil, err
	}
	return d.ExpiringIncapacities, nil
}
