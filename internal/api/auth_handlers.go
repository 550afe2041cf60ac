package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/parkshare/parkshare-core/internal/parking"
)

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// handleRegister creates credentials for a new account, or promotes the
// calling guest in place when a valid token accompanies the request.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if req.Login == "" || req.Password == "" {
		writeBadRequest(w, ErrCodeBadRequest, "login and password are required")
		return
	}

	caller := callerFromContext(r.Context())

	if err := s.service.Register(r.Context(), req.Login, req.Password, caller); err != nil {
		switch {
		case errors.Is(err, parking.ErrLoginInUse):
			writeBadRequest(w, ErrCodeLoginInUse, "login already in use")
		case errors.Is(err, parking.ErrUnauthorized):
			writeUnauthorized(w, ErrCodeUnauthorized, "account cannot be registered")
		default:
			s.logger.Error("register failed", "error", err)
			writeInternalError(w, "failed to register")
		}
		return
	}

	callerID, _ := caller.ID()
	s.logger.Info("user registered", "login", req.Login)
	s.auditLog("register", "user", "", callerID, map[string]any{
		"login": req.Login,
	})

	w.WriteHeader(http.StatusCreated)
}

// handleLogin verifies credentials and returns a fresh token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	userID, token, err := s.service.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, parking.ErrWrongCredentials) {
			writeUnauthorized(w, ErrCodeWrongCredentials, "wrong credentials")
			return
		}
		s.logger.Error("login failed", "error", err)
		writeInternalError(w, "failed to log in")
		return
	}

	s.logger.Info("user logged in", "login", req.Login, "user_id", userID)
	s.auditLog("login", "user", strconv.FormatInt(userID, 10), userID, map[string]any{
		"login": req.Login,
	})

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}
