package status

import (
	"net/http"

	"github.com/leeforge/xrcore/json"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
	Meta  Meta   `json:"meta"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Meta struct {
	TraceId string `json:"traceId,omitempty"`
	Took    int64  `json:"took"`
}

func metaFor(r *http.Request) Meta {
	return Meta{
		TraceId: GetTraceID(r.Context()),
		Took:    GetRequestDuration(r.Context()),
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, status, Response{Data: data, Meta: metaFor(r)})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	write(w, status, Response{
		Error: &Error{Code: status, Message: message},
		Meta:  metaFor(r),
	})
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
