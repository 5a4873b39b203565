package api

import (
	"net/http"

	"github.com/p-arndt/labkasten/internal/session"
)

// keyFunc builds the session key a route addresses for owner.
type keyFunc func(r *http.Request, owner string) (session.Key, error)

func labKey(r *http.Request, owner string) (session.Key, error) {
	id := r.PathValue("id")
	if err := validateLabID(id); err != nil {
		return session.Key{}, err
	}
	return session.LabKey(owner, id), nil
}

func workstationKey(_ *http.Request, owner string) (session.Key, error) {
	return session.WorkstationKey(owner), nil
}

// resolveKey runs the owner and key extraction shared by every session
// route, writing the error response itself when either fails.
func (s *Server) resolveKey(w http.ResponseWriter, r *http.Request, kf keyFunc) (session.Key, bool) {
	owner, ok := s.owner(w, r)
	if !ok {
		return session.Key{}, false
	}
	key, err := kf(r, owner)
	if err != nil {
		writeValidationError(w, err.Error(), nil)
		return session.Key{}, false
	}
	return key, true
}

func (s *Server) handleStart(kf keyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := s.resolveKey(w, r, kf)
		if !ok {
			return
		}
		s.logger.Debug("start session", "key", key.String(), "request_id", requestID(r.Context()))
		sess, err := s.manager.Start(r.Context(), key)
		if err != nil {
			s.logger.Error("start session", "key", key.String(), "request_id", requestID(r.Context()), "error", err)
			writeAPIError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) handleStop(kf keyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := s.resolveKey(w, r, kf)
		if !ok {
			return
		}
		s.logger.Debug("stop session", "key", key.String(), "request_id", requestID(r.Context()))
		writeJSON(w, http.StatusOK, s.manager.Stop(r.Context(), key))
	}
}

func (s *Server) handleStatus(kf keyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := s.resolveKey(w, r, kf)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s.manager.Status(r.Context(), key))
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	sessions := s.manager.List(owner)
	if sessions == nil {
		sessions = []session.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}
