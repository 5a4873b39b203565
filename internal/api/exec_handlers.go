package api

import (
	"net/http"
)

type execRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleExec(kf keyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := s.resolveKey(w, r, kf)
		if !ok {
			return
		}

		var req execRequest
		if err := decodeJSONBody(w, r, &req); err != nil {
			writeValidationError(w, "invalid json: "+err.Error(), nil)
			return
		}
		if err := validateCommand(req.Command); err != nil {
			writeValidationError(w, err.Error(), nil)
			return
		}
		if !s.limiter.Allow(key.Owner) {
			s.logger.Warn("exec rate limited", "key", key.String(), "request_id", requestID(r.Context()))
			writeRateLimitedError(w)
			return
		}

		result, err := s.manager.Execute(r.Context(), key, req.Command)
		if err != nil {
			s.logger.Debug("exec rejected", "key", key.String(), "error", err)
			writeAPIError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
