package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/autoremedy/autoremedy/internal/api"
	"github.com/autoremedy/autoremedy/internal/services"
)

// respondServiceError maps service layer errors to HTTP status codes
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		api.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		api.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrConflict):
		api.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrValidation):
		api.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Handler: Internal error: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
