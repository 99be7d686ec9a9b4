package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/claude/healthbridge/internal/models"
	"github.com/claude/healthbridge/internal/storage"
)

type connectRequest struct {
	UserID            string          `json:"user_id"`
	DeviceType        string          `json:"device_type"`
	ConnectionDetails json.RawMessage `json:"connection_details,omitempty"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	uid, device, errMsg := parseConnectionTarget(req.UserID, req.DeviceType)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	conn, err := s.store.Connect(r.Context(), uid, device, req.ConnectionDetails)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyConnected):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, storage.ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		default:
			s.log.Error("device connect failed", "user_id", req.UserID, "device", device, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "connected",
		"connection": conn,
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	uid, device, errMsg := parseConnectionTarget(req.UserID, req.DeviceType)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	if err := s.store.Disconnect(r.Context(), uid, device); err != nil {
		if errors.Is(err, storage.ErrNotConnected) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.log.Error("device disconnect failed", "user_id", req.UserID, "device", device, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "disconnected",
		"device_type": string(device),
	})
}

func (s *Server) handleConnectionStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	uid, err := uuid.Parse(userID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id must be a UUID"})
		return
	}

	conns, err := s.store.ActiveConnections(r.Context(), uid)
	if err != nil {
		s.log.Error("connection listing failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if conns == nil {
		conns = []models.DeviceConnection{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"count":       len(conns),
		"connections": conns,
	})
}

type createUserRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Email)
	if err != nil {
		s.log.Error("user creation failed", "email", req.Email, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func parseConnectionTarget(userID, deviceType string) (uuid.UUID, models.ProviderKind, string) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, "", "user_id must be a UUID"
	}
	device := models.ProviderKind(deviceType)
	if !device.Valid() {
		return uuid.Nil, "", "unsupported device type: " + deviceType
	}
	return uid, device, ""
}
