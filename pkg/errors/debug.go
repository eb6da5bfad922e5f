package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE values the storefront schema can raise on purpose.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgRaiseException      = "P0001"
)

// PGError is the driver-neutral view of a Postgres error.
type PGError struct {
	Code       string `json:"pg_code,omitempty"`
	Constraint string `json:"pg_constraint,omitempty"`
	Table      string `json:"pg_table,omitempty"`
	Column     string `json:"pg_column,omitempty"`
	Detail     string `json:"pg_detail,omitempty"`
	Message    string `json:"pg_message,omitempty"`
}

// ErrorDump flattens an error for structured logs.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`
	PG         *PGError `json:"pg,omitempty"`
}

// Dump walks the unwrap chain of err and pulls out any Postgres details.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	dump := ErrorDump{TopMessage: err.Error(), PG: postgresError(err)}
	if typed := As(err); typed != nil {
		dump.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		dump.Chain = append(dump.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return dump
}

// WrapDB wraps a storage error, promoting constraint failures to client
// codes. Anything else becomes CodeDependency.
func WrapDB(err error, msg string) error {
	if err == nil {
		return nil
	}
	code := CodeDependency
	if pg := postgresError(err); pg != nil {
		switch pg.Code {
		case pgUniqueViolation:
			code = CodeConflict
		case pgForeignKeyViolation, pgCheckViolation:
			code = CodeValidation
		case pgRaiseException:
			// Raised by the ledger immutability trigger.
			code = CodeStateConflict
		}
	}
	return Wrap(code, err, msg)
}

func postgresError(err error) *PGError {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGError{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGError{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
