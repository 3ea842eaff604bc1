package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE codes the order and stock paths care about.
const (
	sqlStateCheckViolation = "23514"
)

// ErrorDump is the operator-facing view of an error chain, logged next to request.error.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Details    any      `json:"details,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// pgFailure is the driver-neutral part of a Postgres error. The gorm postgres
// dialector reports pgx errors; database/sql callers using lib/pq report pq errors.
type pgFailure struct {
	code, constraint, table, detail, message string
}

func postgresFailure(err error) (pgFailure, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgFailure{pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail, pgxErr.Message}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgFailure{string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail, pqErr.Message}, true
	}
	return pgFailure{}, false
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Details = te.Details()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	if pg, ok := postgresFailure(err); ok {
		d.PGCode, d.PGConstraint, d.PGTable = pg.code, pg.constraint, pg.table
		d.PGDetail, d.PGMessage = pg.detail, pg.message
	}
	return d
}

// IsCheckViolation reports a Postgres check-constraint failure, which is how
// the inventory zero floor surfaces when a conditional update is bypassed.
func IsCheckViolation(err error) bool {
	pg, ok := postgresFailure(err)
	return ok && pg.code == sqlStateCheckViolation
}
