package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alusatu/marketplace/pkg/cache"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes bounds decoded request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// internalErrorBody is written when a response cannot be encoded.
const internalErrorBody = `{"error":"Internal server error"}`

// writeJSON responds through cache.SendJSON so cached routes can capture
// the payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	send(w, cache.SendJSON(w, status, v))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeUncachedError responds with an error that cached routes must not
// replay.
func writeUncachedError(w http.ResponseWriter, status int, message string) {
	send(w, cache.SendUncachedJSON(w, status, errorResponse{Error: message}))
}

func send(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, cache.ErrResponseCommitted) {
		log.Warn().Err(err).Msg("response already written")
		return
	}
	log.Error().Err(err).Msg("write json response")
	w.Header().Set("Content-Type", cache.ContentTypeJSON)
	w.Header().Del("Content-Length")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(internalErrorBody))
}

// decodeJSON reads a JSON request body into v. An empty body leaves v zero.
func decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// CORS reflects the request origin and allows credentials, matching the
// SPA's cookie-based auth.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					h.Set("Access-Control-Allow-Headers", reqHeaders)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
