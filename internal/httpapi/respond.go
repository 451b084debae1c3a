// Package httpapi is the HTTP transport shell (spec §6): a chi router and
// handlers that translate JSON requests into calls against submit.Submitter
// and query.API, and apperr.Error back into the {error:{code,message},
// trace_id} envelope. Request validation (content length, enum ranges, sort
// spec, datetime parsing) lives here, not in the core, per spec §1's
// Non-goals.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/zyrak/simdoc/internal/apperr"
)

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	TraceID string `json:"trace_id"`
}

func newTraceID() string {
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("encoding response body")
	}
}

// writeError translates an *apperr.Error into spec §6/§7's envelope.
func writeError(w http.ResponseWriter, traceID string, aerr *apperr.Error) {
	if aerr.Cause != nil {
		log.WithError(aerr.Cause).WithFields(log.Fields{"trace_id": traceID, "code": aerr.Code}).Warn(aerr.Message)
	}
	env := errorEnvelope{TraceID: traceID}
	env.Error.Code = string(aerr.Code)
	env.Error.Message = aerr.Message
	writeJSON(w, aerr.Code.HTTPStatus(), env)
}

func badRequest(w http.ResponseWriter, traceID, message string) {
	writeError(w, traceID, apperr.New(apperr.InvalidArgument, message))
}
