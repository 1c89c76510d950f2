package db

import (
	"context"
	"fmt"
	"time"
)

// AccessRecord is one row of the access_log table.
type AccessRecord struct {
	OccurredAt time.Time
	RequestID  string
	UserID     string
	UserRoles  []string
	Action     string
	Resource   string
	ResourceID string
	PatientID  string
	Method     string
	Path       string
	StatusCode int
	IPAddress  string
	UserAgent  string
}

// AccessLog writes record-access entries to the access_log table.
type AccessLog struct {
	q Querier
}

func NewAccessLog(q Querier) *AccessLog {
	return &AccessLog{q: q}
}

func (l *AccessLog) Insert(ctx context.Context, r AccessRecord) error {
	if r.OccurredAt.IsZero() {
		r.OccurredAt = time.Now().UTC()
	}
	_, err := l.q.Exec(ctx, `
		INSERT INTO access_log (occurred_at, request_id, user_id, user_roles, action,
			resource, resource_id, patient_id, method, path, status_code, ip_address, user_agent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		r.OccurredAt, nullString(r.RequestID), nullString(r.UserID), r.UserRoles, r.Action,
		r.Resource, nullString(r.ResourceID), nullString(r.PatientID), r.Method, r.Path,
		r.StatusCode, nullString(r.IPAddress), nullString(r.UserAgent))
	if err != nil {
		return fmt.Errorf("insert access log: %w", err)
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
