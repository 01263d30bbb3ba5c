package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func mapPgErrorToServiceError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return newServiceError(http.StatusNotFound, "ITAM_NOT_FOUND", "not found", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		recordWriteConflict("unique")
		return newServiceError(http.StatusConflict, "ITAM_DUPLICATE", "unique constraint violated", err)
	case "23P01": // exclusion_violation
		recordWriteConflict("overlap")
		return newServiceError(http.StatusConflict, "ITAM_OVERLAP", "time window overlap", err)
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		return newServiceError(http.StatusUnprocessableEntity, "ITAM_TARGET_MISSING", "referenced record not found", err)
	case "23514": // check_violation
		recordWriteConflict("check")
		return newServiceError(http.StatusBadRequest, "ITAM_RANGE", "check constraint violated", err)
	default:
		return newServiceError(http.StatusInternalServerError, "ITAM_INTERNAL", fmt.Sprintf("database error (%s)", pgErr.Code), err)
	}
}
