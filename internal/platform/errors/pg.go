package errors

import (
	stderrs "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBErrorCode classifies a Postgres error by SQLSTATE class.
// !ok means err carries no *pgconn.PgError
func DBErrorCode(err error) (ErrorCode, bool) {
	var pgErr *pgconn.PgError
	if !stderrs.As(err, &pgErr) {
		return ErrorCodeUnknown, false
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		return ErrorCodeDuplicateKey, true
	case "23503", "22001", "22P02": // fk, truncation, bad text
		return ErrorCodeInvalidArgument, true
	case "23502", "23514": // not null, check
		return ErrorCodeValidation, true
	case "25006", "57P01", "57P03": // read only, admin shutdown, cannot connect now
		return ErrorCodeUnavailable, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps err under the code DBErrorCode picks, ErrorCodeDB otherwise. nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
	}
	return Wrap(err, code, msg)
}

// FromPostgresf is FromPostgres with a formatted message
func FromPostgresf(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	return FromPostgres(err, fmt.Sprintf(format, a...))
}
