package radiotherapy

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	// ListAll returns every patient ordered by name. Stage filters and the
	// dashboard are computed from it.
	ListAll(ctx context.Context) ([]*Patient, error)
	// ListWithFractions returns the patients that have at least one fraction.
	ListWithFractions(ctx context.Context) ([]*Patient, error)
	UpdateDischargeDate(ctx context.Context, id uuid.UUID, discharge *time.Time) error
	UpdateLastBloodTest(ctx context.Context, id uuid.UUID, date time.Time) error
}

type FractionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Fraction, error)
	Update(ctx context.Context, f *Fraction) error
	// ReplaceForPatient deletes the patient's fractions and inserts the new set.
	ReplaceForPatient(ctx context.Context, patientID uuid.UUID, fractions []*Fraction) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Fraction, error)
	ListByDate(ctx context.Context, date time.Time) ([]*Fraction, error)
	SetDelivered(ctx context.Context, ids []uuid.UUID) (int, error)
	SetConfirmedByDoctor(ctx context.Context, ids []uuid.UUID) (int, error)
	// ConfirmOnDate marks every fraction on date delivered and doctor-confirmed.
	ConfirmOnDate(ctx context.Context, date time.Time) (int, error)
}

type IncapacityRepository interface {
	Create(ctx context.Context, mi *MedicalIncapacity) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalIncapacity, error)
	Update(ctx context.Context, mi *MedicalIncapacity) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalIncapacity, error)
	// LatestByPatient maps each patient to the certificate with the latest end date.
	LatestByPatient(ctx context.Context) (map[uuid.UUID]*MedicalIncapacity, error)
}

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
