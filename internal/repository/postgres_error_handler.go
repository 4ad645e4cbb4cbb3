package repository

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgErrorMapping struct {
	code    string
	message string
}

// pgErrorCodes covers the SQLSTATEs a kv_store statement can raise
var pgErrorCodes = map[string]pgErrorMapping{
	"23505": {apperrors.CodeConflict, "key already exists"},
	"23502": {apperrors.CodeInvalidArg, "key and value are required"},
	"22P02": {apperrors.CodeInvalidArg, "value must be a JSON document"},
	"42P01": {apperrors.CodeStorage, "table not found (run 'ytskip migrate up')"},
	"42703": {apperrors.CodeStorage, "column not found (run 'ytskip migrate up')"},
	"53300": {apperrors.CodeStorage, "database connection limit reached"},
	"57014": {apperrors.CodeTimeout, "statement cancelled by the server"},
}

// handlePostgreSQLError maps a store failure to an AppError; operation names
// the statement that failed
func handlePostgreSQLError(err error, operation string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Wrap(err, apperrors.CodeTimeout, operation+": request cancelled")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return apperrors.Wrap(err, apperrors.CodeStorage, operation)
	}

	if mapping, ok := pgErrorCodes[pgErr.Code]; ok {
		return apperrors.Wrap(err, mapping.code, operation+": "+mapping.message)
	}
	// class 08: connection exceptions
	if strings.HasPrefix(pgErr.Code, "08") {
		return apperrors.Wrap(err, apperrors.CodeStorage, operation+": database connection error")
	}
	return apperrors.Wrap(err, apperrors.CodeStorage, operation+" (PostgreSQL code: "+pgErr.Code+")")
}
