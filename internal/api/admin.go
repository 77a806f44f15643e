package api

import "net/http"

type cacheStatsResponse struct {
	Entries int      `json:"entries"`
	Keys    []string `json:"keys"`
}

func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, cacheStatsResponse{Entries: s.cache.Len(), Keys: s.cache.Keys()})
}

func (s *Server) flushCache(w http.ResponseWriter, _ *http.Request) {
	removed := s.cache.Len()
	s.cache.Flush()
	s.logger.Info().Int("removed", removed).Msg("response cache flushed by admin")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
}
