package handlers

import (
	"errors"
	"net/http"

	"github.com/gatherline/server/internal/api/middleware"
	"github.com/gatherline/server/internal/api/problem"
	"github.com/gatherline/server/internal/domain/users"
	"github.com/gatherline/server/internal/metrics"
)

type AuthHandler struct {
	Service *users.Service
	Env     string
}

func NewAuthHandler(service *users.Service, env string) *AuthHandler {
	return &AuthHandler{Service: service, Env: env}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input users.RegisterInput
	if !decodeJSON(w, r, &input, h.Env) {
		return
	}

	if err := h.Service.Register(r.Context(), input); err != nil {
		var validationErr users.ValidationError
		switch {
		case errors.Is(err, users.ErrEmailExists):
			problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, h.Env,
				problem.WithDetail(users.ErrEmailExists.Error()))
		case errors.Is(err, users.ErrUsernameExists):
			problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, h.Env,
				problem.WithDetail(users.ErrUsernameExists.Error()))
		case errors.As(err, &validationErr):
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation Error", err, h.Env,
				problem.WithErrors(map[string]interface{}{validationErr.Field: validationErr.Message}))
		default:
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		}
		return
	}

	metrics.UsersRegistered.Inc()
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input users.LoginInput
	if !decodeJSON(w, r, &input, h.Env) {
		return
	}

	token, err := h.Service.Login(r.Context(), input)
	if err != nil {
		var validationErr users.ValidationError
		switch {
		case errors.Is(err, users.ErrInvalidCredentials):
			// Identical response for unknown email and wrong password.
			metrics.LoginAttempts.WithLabelValues("failure").Inc()
			problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, h.Env,
				problem.WithDetail(users.ErrInvalidCredentials.Error()))
		case errors.As(err, &validationErr):
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation Error", err, h.Env,
				problem.WithErrors(map[string]interface{}{validationErr.Field: validationErr.Message}))
		default:
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		}
		return
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

// Protected is a smoke route for verifying bearer authentication.
func (h *AuthHandler) Protected(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", nil, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "This is a protected route",
		"email":   claims.Email,
		"userId":  claims.Subject,
	})
}
