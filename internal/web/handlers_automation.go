package web

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"purifier-go-home/internal/automation"
)

// scriptView is a stored script plus its runtime status.
type scriptView struct {
	*automation.Script
	Running bool `json:"running"`
}

func (s *Server) view(sc *automation.Script) scriptView {
	v := scriptView{Script: sc}
	if s.autoEngine != nil {
		v.Running = s.autoEngine.Running(sc.ID)
	}
	return v
}

func (s *Server) automationsUnavailable(w http.ResponseWriter) bool {
	if s.scriptMgr == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "automations not available"})
		return true
	}
	return false
}

func (s *Server) handleAPIListAutomations(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeJSON(w, http.StatusOK, []scriptView{})
		return
	}
	scripts, err := s.scriptMgr.List()
	if err != nil {
		s.logger.Error("list scripts", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	views := make([]scriptView, 0, len(scripts))
	for _, sc := range scripts {
		views = append(views, s.view(sc))
	}
	s.writeJSON(w, http.StatusOK, views)
}

// scriptStatus maps manager errors to HTTP status codes.
func scriptStatus(err error) int {
	switch {
	case errors.Is(err, automation.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleAPIGetAutomation(w http.ResponseWriter, r *http.Request) {
	if s.automationsUnavailable(w) {
		return
	}
	sc, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, scriptStatus(err), map[string]string{"error": "script not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(sc))
}

type saveAutomationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LuaCode     string `json:"lua_code"`
	Enabled     bool   `json:"enabled"`
}

// saveAndRespond stores sc, restarts it and writes the response. A script
// that fails to load is saved disabled and reported with 422.
func (s *Server) saveAndRespond(w http.ResponseWriter, sc *automation.Script, status int) {
	saved, err := s.scriptMgr.Save(sc)
	if err != nil {
		s.logger.Error("save script", "id", sc.ID, "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if s.autoEngine == nil {
		s.writeJSON(w, status, s.view(saved))
		return
	}

	loadErr := s.autoEngine.ReloadScript(saved.ID)
	if loadErr == nil {
		s.writeJSON(w, status, s.view(saved))
		return
	}
	s.logger.Warn("script failed to load", "id", saved.ID, "err", loadErr)
	saved.Meta.Enabled = false
	if _, err := s.scriptMgr.Save(saved); err != nil {
		s.logger.Error("disable broken script", "id", saved.ID, "err", err)
	}
	s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": loadErr.Error(), "script": s.view(saved)})
}

func (s *Server) handleAPICreateAutomation(w http.ResponseWriter, r *http.Request) {
	if s.automationsUnavailable(w) {
		return
	}

	var req saveAutomationRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	s.saveAndRespond(w, &automation.Script{
		Meta:    automation.ScriptMeta{Name: req.Name, Description: req.Description, Enabled: req.Enabled},
		LuaCode: req.LuaCode,
	}, http.StatusCreated)
}

func (s *Server) handleAPIUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	if s.automationsUnavailable(w) {
		return
	}

	existing, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, scriptStatus(err), map[string]string{"error": "script not found"})
		return
	}

	var req saveAutomationRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name != "" {
		existing.Meta.Name = req.Name
	}
	existing.Meta.Description = req.Description
	existing.Meta.Enabled = req.Enabled
	existing.LuaCode = req.LuaCode

	s.saveAndRespond(w, existing, http.StatusOK)
}

func (s *Server) handleAPIDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	if s.automationsUnavailable(w) {
		return
	}

	id := r.PathValue("id")
	if s.autoEngine != nil {
		s.autoEngine.StopScript(id)
	}
	if err := s.scriptMgr.Delete(id); err != nil {
		status := scriptStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("delete script", "id", id, "err", err)
		}
		s.writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAPIRunAutomation runs a stored script once, or the lua_code in the
// body when id is "_inline".
func (s *Server) handleAPIRunAutomation(w http.ResponseWriter, r *http.Request) {
	if s.autoEngine == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "automation engine not available"})
		return
	}

	id := r.PathValue("id")
	if id != "_inline" {
		s.writeJSON(w, http.StatusOK, s.autoEngine.RunScript(id))
		return
	}

	var req struct {
		LuaCode string `json:"lua_code"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.autoEngine.RunLuaCode(req.LuaCode))
}

func (s *Server) handleAPIToggleAutomation(w http.ResponseWriter, r *http.Request) {
	if s.automationsUnavailable(w) {
		return
	}

	sc, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, scriptStatus(err), map[string]string{"error": "script not found"})
		return
	}
	sc.Meta.Enabled = !sc.Meta.Enabled

	s.saveAndRespond(w, sc, http.StatusOK)
}
