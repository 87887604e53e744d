package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLError carries the postgres diagnostics of a failed cart store call.
type SQLError struct {
	State      string `json:"state"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Transient reports whether retrying the statement can succeed: connection
// loss, serialization failures, deadlocks, resource exhaustion and admin
// shutdowns.
func (s *SQLError) Transient() bool {
	if s == nil {
		return false
	}
	switch {
	case strings.HasPrefix(s.State, "08"), strings.HasPrefix(s.State, "53"):
		return true
	case s.State == "40001", s.State == "40P01", s.State == "57P01":
		return true
	}
	return false
}

// ErrorDump flattens an error chain for structured logs.
type ErrorDump struct {
	TopMessage string    `json:"top_message"`
	Code       Code      `json:"code,omitempty"`
	Retryable  bool      `json:"retryable"`
	Chain      []string  `json:"chain,omitempty"`
	SQL        *SQLError `json:"sql,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), SQL: sqlError(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
	}
	if d.SQL.Transient() {
		d.Retryable = true
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

// Fields renders the dump as log fields, leaving out empty SQL details.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":           d.TopMessage,
		"error_code":      d.Code,
		"error_chain":     d.Chain,
		"error_retryable": d.Retryable,
	}
	if d.SQL != nil {
		fields["sql_state"] = d.SQL.State
		for key, value := range map[string]string{
			"sql_constraint": d.SQL.Constraint,
			"sql_table":      d.SQL.Table,
			"sql_detail":     d.SQL.Detail,
			"sql_message":    d.SQL.Message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}

// sqlError finds a pgx or lib/pq error in the chain. gorm's postgres driver
// surfaces pgx errors; goose migrations on lib/pq surface pq errors.
func sqlError(err error) *SQLError {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &SQLError{
			State:      pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &SQLError{
			State:      string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
