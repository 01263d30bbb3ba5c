package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/itamops/assetman/modules/assets/domain/assignment"
	"github.com/itamops/assetman/pkg/hierarchy"
	"github.com/itamops/assetman/pkg/interval"
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

// mapEngineError translates ledger/graph/target errors into transport-ready
// service errors. Meta carries the offending identifiers so callers can report
// precisely without re-querying.
func mapEngineError(err error) error {
	if err == nil {
		return nil
	}

	var (
		overlap        *interval.OverlapError
		ivRange        *interval.RangeError
		ivNotFound     *interval.NotFoundError
		ivBusy         *interval.BusyError
		selfRef        *hierarchy.SelfReferenceError
		cycle          *hierarchy.CycleError
		duplicate      *hierarchy.DuplicateError
		edgeNotFound   *hierarchy.NotFoundError
		graphBusy      *hierarchy.BusyError
		targetMissing  *assignment.TargetMissingError
		targetConflict *assignment.TargetConflictError
	)

	switch {
	case errors.As(err, &overlap):
		se := newServiceError(http.StatusConflict, "ITAM_OVERLAP", "assignment overlaps an existing interval", err)
		se.Meta = map[string]string{
			"subject_key":             string(overlap.Key),
			"conflicting_interval_id": overlap.Conflicting.ID.String(),
		}
		return se
	case errors.As(err, &ivRange):
		return newServiceError(http.StatusBadRequest, "ITAM_RANGE", "invalid interval range", err)
	case errors.As(err, &ivNotFound):
		se := newServiceError(http.StatusNotFound, "ITAM_NOT_FOUND", "interval not found", err)
		se.Meta = map[string]string{"interval_id": ivNotFound.ID.String()}
		return se
	case errors.As(err, &ivBusy):
		se := newServiceError(http.StatusServiceUnavailable, "ITAM_BUSY", "subject is busy, retry", err)
		se.Meta = map[string]string{"subject_key": string(ivBusy.Key)}
		return se
	case errors.As(err, &selfRef):
		se := newServiceError(http.StatusUnprocessableEntity, "ITAM_SELF_REFERENCE", "node may not reference itself", err)
		se.Meta = map[string]string{"node_id": selfRef.Node.String()}
		return se
	case errors.As(err, &cycle):
		se := newServiceError(http.StatusConflict, "ITAM_CYCLE", "edge would close a cycle", err)
		se.Meta = map[string]string{
			"parent_id": cycle.Parent.String(),
			"child_id":  cycle.Child.String(),
		}
		return se
	case errors.As(err, &duplicate):
		se := newServiceError(http.StatusConflict, "ITAM_DUPLICATE", "edge already exists", err)
		se.Meta = map[string]string{
			"parent_id": duplicate.Edge.Parent.String(),
			"child_id":  duplicate.Edge.Child.String(),
			"edge_type": duplicate.Edge.Type,
		}
		return se
	case errors.As(err, &edgeNotFound):
		se := newServiceError(http.StatusNotFound, "ITAM_NOT_FOUND", "edge not found", err)
		se.Meta = map[string]string{
			"parent_id": edgeNotFound.Edge.Parent.String(),
			"child_id":  edgeNotFound.Edge.Child.String(),
			"edge_type": edgeNotFound.Edge.Type,
		}
		return se
	case errors.As(err, &graphBusy):
		return newServiceError(http.StatusServiceUnavailable, "ITAM_BUSY", "hierarchy is busy, retry", err)
	case errors.As(err, &targetMissing):
		se := newServiceError(http.StatusUnprocessableEntity, "ITAM_TARGET_MISSING", "assignment needs a target", err)
		se.Meta = map[string]string{"subject_id": targetMissing.Subject.String()}
		return se
	case errors.As(err, &targetConflict):
		se := newServiceError(http.StatusUnprocessableEntity, "ITAM_TARGET_CONFLICT", "assignment names conflicting targets", err)
		se.Meta = map[string]string{"subject_id": targetConflict.Subject.String()}
		return se
	}
	return err
}
