package httpapi

import (
	"errors"
	"net/http"

	"remediation-engine/internal/domain"

	"go.uber.org/zap"
)

// writeError 领域错误 -> HTTP 状态码 + Fail 包装
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		verr *domain.ValidationError
		perr *domain.PersistenceError
		uerr *domain.UploadError
		aerr *domain.AccountingError
	)

	switch {
	case errors.As(err, &verr):
		if len(verr.Rooms) > 0 {
			writeJSON(w, http.StatusBadRequest, FailWithResult(verr.Error(), map[string]any{
				"field": verr.Field,
				"rooms": verr.Rooms,
			}))
			return
		}
		writeJSON(w, http.StatusBadRequest, FailWithResult(verr.Error(), map[string]any{"field": verr.Field}))

	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrMeasurementNotFound),
		errors.Is(err, domain.ErrCatalogItemNotFound),
		errors.Is(err, domain.ErrPhotoNotFound):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))

	case errors.As(err, &perr):
		writeJSON(w, http.StatusInternalServerError, Fail(perr.Error()))

	case errors.As(err, &uerr):
		writeJSON(w, http.StatusBadGateway, FailWithResult(uerr.Error(), map[string]int{
			"failed": uerr.Failed,
			"total":  uerr.Total,
		}))

	case errors.As(err, &aerr):
		writeJSON(w, accountingStatus(aerr), FailWithResult(aerr.Error(), map[string]any{
			"kind":        accountingKind(aerr),
			"status_code": aerr.StatusCode,
		}))

	default:
		logger.Error("Unhandled request error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
	}
}

func accountingStatus(e *domain.AccountingError) int {
	switch {
	case errors.Is(e, domain.ErrMissingCredentials):
		return http.StatusUnauthorized
	case errors.Is(e, domain.ErrAPIRejection):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func accountingKind(e *domain.AccountingError) string {
	switch {
	case errors.Is(e, domain.ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(e, domain.ErrTransport):
		return "transport"
	case errors.Is(e, domain.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(e, domain.ErrAPIRejection):
		return "api_rejection"
	}
	return "unknown"
}
