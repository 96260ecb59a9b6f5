package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"

	"taskboard/internal/auth"
	"taskboard/internal/authpw"
	"taskboard/internal/board"
	"taskboard/internal/store"
)

// DomainError is an HTTP-level failure raised by the handlers themselves,
// before a board operation runs.
type DomainError struct {
	Status  int
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message}
}

func badRequest(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message)
}

var kindStatus = map[board.Kind]struct {
	status int
	code   string
}{
	board.KindValidation:    {http.StatusBadRequest, "VALIDATION_ERROR"},
	board.KindNotFound:      {http.StatusNotFound, "NOT_FOUND"},
	board.KindAccessDenied:  {http.StatusForbidden, "FORBIDDEN"},
	board.KindQuotaExceeded: {http.StatusTooManyRequests, "QUOTA_EXCEEDED"},
	board.KindConflict:      {http.StatusConflict, "CONFLICT"},
	board.KindPersistence:   {http.StatusInternalServerError, "DELETE_FAILED"},
}

func mapError(err error) (status int, code, message string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message
	}
	var boardErr *board.Error
	if errors.As(err, &boardErr) {
		if mapped, ok := kindStatus[boardErr.Kind]; ok {
			return mapped.status, mapped.code, boardErr.Message
		}
	}
	var inputErr *authpw.InputError
	if errors.As(err, &inputErr) {
		return http.StatusBadRequest, "VALIDATION_ERROR", inputErr.Message
	}
	switch {
	case errors.Is(err, authpw.ErrEmailTaken):
		return http.StatusConflict, "CONFLICT", "Email already registered"
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found"
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error"
}

// writeFailure maps err onto the envelope. Unexpected errors are logged
// under an incident id and only the id reaches the client.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapError(err)
	response := map[string]any{
		"status":  false,
		"message": message,
		"code":    code,
	}
	if status == http.StatusInternalServerError {
		incident := randomID()
		log.Printf(`{"request_id":"%s","incident_id":"%s","error":%q}`, requestID(r), incident, err.Error())
		response["incidentId"] = incident
	}
	writeJSON(w, status, response)
}

func randomID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
