package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execCall struct {
	sql  string
	args []interface{}
}

type fakeQuerier struct {
	calls []execCall
	err   error
}

func (f *fakeQuerier) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return nil
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestAccessLog_Insert(t *testing.T) {
	q := &fakeQuerier{}
	at := time.Date(2024, 4, 3, 9, 30, 0, 0, time.UTC)
	err := NewAccessLog(q).Insert(context.Background(), AccessRecord{
		OccurredAt: at,
		UserID:     "nurse-1",
		UserRoles:  []string{"nurse"},
		Action:     "read",
		Resource:   "patients",
		ResourceID: "7d3e",
		PatientID:  "7d3e",
		Method:     "GET",
		Path:       "/api/v1/patients/7d3e",
		StatusCode: 200,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(q.calls) != 1 {
		t.Fatalf("expected 1 exec, got %d", len(q.calls))
	}
	call := q.calls[0]
	if !strings.Contains(call.sql, "INSERT INTO access_log") {
		t.Errorf("unexpected sql: %s", call.sql)
	}
	if len(call.args) != 13 {
		t.Fatalf("expected 13 args, got %d", len(call.args))
	}
	if got := call.args[0].(time.Time); !got.Equal(at) {
		t.Errorf("occurred_at = %v, want %v", got, at)
	}
	if got := call.args[1].(*string); got != nil {
		t.Errorf("empty request id should be NULL, got %q", *got)
	}
	if got := call.args[2].(*string); got == nil || *got != "nurse-1" {
		t.Errorf("user_id = %v", got)
	}
	if got := call.args[10].(int); got != 200 {
		t.Errorf("status_code = %d", got)
	}
}

func TestAccessLog_Insert_DefaultsTimestamp(t *testing.T) {
	q := &fakeQuerier{}
	before := time.Now().UTC()
	if err := NewAccessLog(q).Insert(context.Background(), AccessRecord{Action: "read", Resource: "dashboard", Method: "GET", Path: "/api/v1/dashboard"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := q.calls[0].args[0].(time.Time); got.Before(before) {
		t.Errorf("expected occurred_at to default to now, got %v", got)
	}
}

func TestAccessLog_Insert_Error(t *testing.T) {
	q := &fakeQuerier{err: errors.New("connection reset")}
	err := NewAccessLog(q).Insert(context.Background(), AccessRecord{Action: "read"})
	if err == nil || !strings.Contains(err.Error(), "insert access log") {
		t.Errorf("expected wrapped error, got %v", err)
	}
}
