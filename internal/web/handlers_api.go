package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"purifier-go-home/internal/coordinator"
	"purifier-go-home/internal/device"
	"purifier-go-home/internal/indicator"
	"purifier-go-home/internal/store"
	"purifier-go-home/internal/zcl"
)

func (s *Server) handleAPIState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dev.State())
}

// fanRequest is the body of POST /api/fan and of WebSocket messages. Keys
// are applied in the order power, mode, percentage, brightness.
type fanRequest struct {
	Power      *bool           `json:"power,omitempty"`
	Mode       *device.FanMode `json:"mode,omitempty"`
	Percentage *int            `json:"percentage,omitempty"`
	Brightness *int            `json:"brightness,omitempty"`
}

var errEmptyRequest = errors.New("request sets nothing")

func (req fanRequest) commands() ([]coordinator.Command, error) {
	var cmds []coordinator.Command
	if req.Power != nil {
		cmds = append(cmds, coordinator.SetPower{On: *req.Power})
	}
	if req.Mode != nil {
		cmds = append(cmds, coordinator.SetMode{Mode: *req.Mode})
	}
	if req.Percentage != nil {
		cmds = append(cmds, coordinator.SetPercentage{Percentage: device.ClampPercent(*req.Percentage)})
	}
	if req.Brightness != nil {
		if *req.Brightness < 0 || *req.Brightness > indicator.MaxBrightness {
			return nil, errors.New("brightness must be 0-3")
		}
		cmds = append(cmds, coordinator.SetBrightness{Level: *req.Brightness})
	}
	if len(cmds) == 0 {
		return nil, errEmptyRequest
	}
	return cmds, nil
}

func (s *Server) applyFanRequest(req fanRequest) error {
	cmds, err := req.commands()
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		if err := s.dev.Execute(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleAPIFan(w http.ResponseWriter, r *http.Request) {
	var req fanRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := s.applyFanRequest(req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, s.dev.State())
}

type buttonRequest struct {
	Button    *device.ButtonID `json:"button"`
	LongPress bool             `json:"long_press"`
}

func (s *Server) handleAPIButton(w http.ResponseWriter, r *http.Request) {
	if s.buttons == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "button input not available"})
		return
	}
	var req buttonRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Button == nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	ev := device.ButtonEvent{Source: *req.Button, LongPress: req.LongPress}
	s.buttons.Push(ev)
	s.logger.Info("simulated button press", "event", ev.String())
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "event": ev.String()})
}

func (s *Server) handleAPIListAttributes(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSON(w, http.StatusOK, []store.Attribute{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Snapshot())
}

type writeAttributeRequest struct {
	store.Path
	Value any `json:"value"`
}

// handleAPIWriteAttribute performs an authoritative write, exactly as a
// controller on the protocol side would.
func (s *Server) handleAPIWriteAttribute(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "attribute store not available"})
		return
	}
	var req writeAttributeRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	err := s.store.Update(req.Path, req.Value)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, store.ErrReadOnly):
		s.writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, zcl.ErrNotNullable), errors.Is(err, zcl.ErrInvalidValue):
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	default:
		s.logger.Error("write attribute", "path", req.Path.String(), "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	v, _ := s.store.Get(req.Path)
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "value": v})
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}
