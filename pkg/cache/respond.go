package cache

import (
	"net/http"
	"strconv"
)

// ContentTypeJSON is the Content-Type sent with every JSON body.
const ContentTypeJSON = "application/json; charset=utf-8"

// JSONSender is implemented by response writers that want to observe JSON
// payloads before they are serialized onto the wire. The response cache's
// miss-path writer is one.
type JSONSender interface {
	// SendJSON writes v as the response body with the given status.
	// A zero status means "whatever the handler already set, else 200".
	SendJSON(status int, v any) error
}

// SendJSON writes v as a JSON response. If w, or a writer it wraps,
// implements JSONSender the payload is handed to it; otherwise v is
// encoded and written directly.
//
// Handlers behind Middleware must respond through SendJSON for their
// responses to be cached. An encoding error is returned before anything
// is written.
func SendJSON(w http.ResponseWriter, status int, v any) error {
	if sender := findSender(w); sender != nil {
		return sender.SendJSON(status, v)
	}

	body, err := Encode(v)
	if err != nil {
		return err
	}
	if status == 0 {
		status = http.StatusOK
	}
	return writeJSON(w, status, body)
}

// SendUncachedJSON writes v like SendJSON but keeps it out of the cache,
// so the next request for the same key runs the handler again. It is meant
// for transient failures such as an unreachable upstream.
func SendUncachedJSON(w http.ResponseWriter, status int, v any) error {
	if iw := findInterceptor(w); iw != nil {
		return iw.sendUncached(status, v)
	}

	body, err := Encode(v)
	if err != nil {
		return err
	}
	if status == 0 {
		status = http.StatusOK
	}
	return writeJSON(w, status, body)
}

func findInterceptor(w http.ResponseWriter) *interceptor {
	for w != nil {
		if iw, ok := w.(*interceptor); ok {
			return iw
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return nil
		}
		w = u.Unwrap()
	}
	return nil
}

// findSender walks the Unwrap chain (the same convention
// http.ResponseController uses) looking for a JSONSender.
func findSender(w http.ResponseWriter) JSONSender {
	for w != nil {
		if sender, ok := w.(JSONSender); ok {
			return sender
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return nil
		}
		w = u.Unwrap()
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body []byte) error {
	h := w.Header()
	h.Set("Content-Type", ContentTypeJSON)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}
