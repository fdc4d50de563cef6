package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// statusForKind maps a failure kind to the HTTP status returned for it.
func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientStock, domain.KindConflict:
		return http.StatusConflict
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindAuthenticationRequired:
		return http.StatusUnauthorized
	case domain.KindReservation, domain.KindOrderCreation:
		return http.StatusBadGateway
	case domain.KindPersistence, domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes err using its kind and customer-facing reason.
// Errors without a kind become a bare 500.
func respondDomainError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := domain.KindOf(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("kind", kind.String()), zap.Error(err))
	}
	if kind == domain.KindUnknown {
		respondError(w, status, "internal_error", "internal server error")
		return
	}
	respondError(w, status, kind.String(), domain.ReasonOf(err))
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation failed",
			Code:    "invalid_argument",
			Details: validationDetails(err),
		})
		return false
	}
	return true
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
