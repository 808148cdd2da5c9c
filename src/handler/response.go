package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/ledger"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps ledger refusals onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrPositionNotFound), errors.Is(err, ledger.ErrStrategyNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidSignal), errors.Is(err, ledger.ErrInvalidStopLoss),
		errors.Is(err, ledger.ErrInvalidPrice), errors.Is(err, ledger.ErrUnsupportedSide),
		errors.Is(err, ledger.ErrAllocationOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrExecutionFailed):
		return http.StatusBadGateway
	case errors.Is(err, ledger.ErrLedgerFaulted), errors.Is(err, ledger.ErrInternalConsistency):
		return http.StatusInternalServerError
	case ledger.Code(err) == "CANCELED":
		return http.StatusServiceUnavailable
	case ledger.Code(err) == "UNKNOWN":
		return http.StatusInternalServerError
	}
	// risk gate and capital refusals
	return http.StatusUnprocessableEntity
}

func writeLedgerError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Code: ledger.Code(err)})
}

func decodeStrict(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
