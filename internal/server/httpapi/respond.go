package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/validation"
)

const maxBodyBytes = 1 << 20

const (
	msgUserExists         = "User already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgNotVerified        = "Email not verified"
	msgInvalidCode        = "Invalid or expired code"
	msgInvalidToken       = "Invalid or expired token"
	msgUserNotFound       = "User not found"
	msgUnauthorized       = "Unauthorized"
	msgNoToken            = "Unauthorized - no token provided"
	msgBadToken           = "Unauthorized - invalid token"
	msgValidation         = "Validation error"
	msgInternal           = "Internal server error"
)

// envelope is the JSON shape of every response.
type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Errors  []string               `json:"errors,omitempty"`
	User    *models.AccountSummary `json:"user,omitempty"`
}

type validator interface {
	Validate() error
}

// decode reads a JSON body into dest and validates it. Any failure comes
// back as a validation error.
func decode(w http.ResponseWriter, r *http.Request, dest validator) error {
	if r.Body == nil {
		return validation.BodyError()
	}
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dest); err != nil {
		return validation.BodyError()
	}
	return dest.Validate()
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, envelope{Success: status < 400, Message: msg})
}

// fail maps err onto the status taxonomy. Internal causes are logged and
// replaced by a generic message.
func (a *API) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, common.ErrorInternal):
		a.logger.Error(r.Context(), "request failed", "op", op, "error", err)
		respondMessage(w, http.StatusInternalServerError, msgInternal)
	case errors.Is(err, common.ErrValidation):
		respondJSON(w, http.StatusBadRequest, envelope{Message: msgValidation, Errors: validation.Messages(err)})
	case errors.Is(err, common.ErrorAlreadyExists):
		respondMessage(w, http.StatusBadRequest, msgUserExists)
	case errors.Is(err, common.ErrInvalidCredentials):
		respondMessage(w, http.StatusBadRequest, msgInvalidCredentials)
	case errors.Is(err, common.ErrNotVerified):
		respondMessage(w, http.StatusForbidden, msgNotVerified)
	case errors.Is(err, common.ErrInvalidOrExpired):
		if op == services.OpVerifyEmail {
			respondMessage(w, http.StatusBadRequest, msgInvalidCode)
			return
		}
		respondMessage(w, http.StatusBadRequest, msgInvalidToken)
	case errors.Is(err, common.ErrorNotFound):
		respondMessage(w, http.StatusNotFound, msgUserNotFound)
	case errors.Is(err, common.ErrorUnauthorized):
		respondMessage(w, http.StatusUnauthorized, msgUnauthorized)
	default:
		a.logger.Error(r.Context(), "request failed", "op", op, "error", err)
		respondMessage(w, http.StatusInternalServerError, msgInternal)
	}
}
