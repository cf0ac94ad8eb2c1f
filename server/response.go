package server

import (
	"encoding/json"
	"net/http"

	"github.com/teranos/discograph/errors"
	grapherror "github.com/teranos/discograph/graph/error"
	"github.com/teranos/discograph/logger"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeError classifies err and writes its payload with the matching status.
// A missing entity is the bare 404 "No Data". 5xx responses are logged at
// Error, everything else at Debug.
func (s *DiscographServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errors.ErrEntityNotFound) {
		logger.FromContext(r.Context(), s.logger).Debugw("No data", logger.FieldError, err, logger.FieldPath, r.URL.Path)
		writeMessage(w, http.StatusNotFound, "No Data")
		return
	}

	ge := grapherror.Classify(err)
	status := ge.HTTPStatus()

	log := logger.FromContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		log.Errorw("Request failed", append(ge.ToLogFields(), logger.FieldPath, r.URL.Path)...)
	} else {
		log.Debugw("Request rejected", append(ge.ToLogFields(), logger.FieldPath, r.URL.Path)...)
	}

	payload := ge.ToPayload()
	payload["request_id"] = logger.RequestIDFromContext(r.Context())
	writeJSON(w, status, payload)
}

// writeMessage writes a bare {"error": message} body, the shape the
// front end expects for 404 "Bad Entity Type" and "No Data".
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
