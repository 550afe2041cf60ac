package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parkshare/parkshare-core/internal/parking"
)

type parkingRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type joinResponse struct {
	Token   string           `json:"token,omitempty"`
	Parking *parking.Parking `json:"parking"`
}

// handleCreateParking registers a new parking owned by the caller.
func (s *Server) handleCreateParking(w http.ResponseWriter, r *http.Request) {
	var req parkingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if req.Name == "" || req.Password == "" {
		writeBadRequest(w, ErrCodeBadRequest, "name and password are required")
		return
	}

	caller := callerFromContext(r.Context())

	p, err := s.service.Create(r.Context(), req.Name, req.Password, caller)
	if err != nil {
		switch {
		case errors.Is(err, parking.ErrNoPermission):
			writeForbidden(w, "no permission")
		case errors.Is(err, parking.ErrNameTaken):
			writeBadRequest(w, ErrCodeNameTaken, "parking name already taken")
		default:
			s.logger.Error("create parking failed", "error", err)
			writeInternalError(w, "failed to create parking")
		}
		return
	}

	callerID, _ := caller.ID()
	s.logger.Info("parking created", "parking_id", p.ID, "name", p.Name, "owner_id", p.OwnerID)
	s.auditLog("create", "parking", strconv.FormatInt(p.ID, 10), callerID, map[string]any{
		"name": p.Name,
	})

	writeJSON(w, http.StatusCreated, p)
}

// handleListParkings returns the parkings visible to the caller: joined
// memberships (most recent first) followed by owned parkings. Secrets are
// never included.
func (s *Server) handleListParkings(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())

	summaries, err := s.service.ListVisible(r.Context(), caller)
	if err != nil {
		if errors.Is(err, parking.ErrNoPermission) {
			writeForbidden(w, "no permission")
			return
		}
		s.logger.Error("list parkings failed", "error", err)
		writeInternalError(w, "failed to list parkings")
		return
	}

	writeJSON(w, http.StatusOK, summaries)
}

// handleReadParkingSecret returns the full parking record, password
// included. Owner only; a missing parking is indistinguishable from a
// permission failure.
func (s *Server) handleReadParkingSecret(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, ErrCodeBadRequest, "invalid parking id")
		return
	}

	caller := callerFromContext(r.Context())

	p, err := s.service.ReadSecret(r.Context(), id, caller)
	if err != nil {
		if errors.Is(err, parking.ErrNoPermission) {
			writeForbidden(w, "no permission")
			return
		}
		s.logger.Error("read parking secret failed", "error", err)
		writeInternalError(w, "failed to read parking")
		return
	}

	callerID, _ := caller.ID()
	s.auditLog("secret_read", "parking", strconv.FormatInt(id, 10), callerID, nil)

	writeJSON(w, http.StatusOK, p)
}

// handleJoinParking adds the caller as a consumer of the named parking.
// Anonymous callers are provisioned a guest account and receive a token
// for it alongside the parking.
func (s *Server) handleJoinParking(w http.ResponseWriter, r *http.Request) {
	var req parkingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	caller := callerFromContext(r.Context())

	result, err := s.service.Join(r.Context(), req.Name, req.Password, caller)
	if err != nil {
		if errors.Is(err, parking.ErrWrongParking) {
			writeBadRequest(w, ErrCodeWrongParking, "wrong parking name or password")
			return
		}
		s.logger.Error("join parking failed", "error", err)
		writeInternalError(w, "failed to join parking")
		return
	}

	callerID, _ := caller.ID()
	s.logger.Info("parking joined", "parking_id", result.Parking.ID, "guest_provisioned", result.Token != "")
	s.auditLog("join", "parking", strconv.FormatInt(result.Parking.ID, 10), callerID, map[string]any{
		"guest_provisioned": result.Token != "",
	})

	writeJSON(w, http.StatusOK, joinResponse{Token: result.Token, Parking: result.Parking})
}
