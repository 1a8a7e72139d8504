// Package shared holds the request decoding and result writing helpers used
// by every API handler.
package shared

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/gorilla/schema"
	"github.com/wpmend-dev/wpmend-agent/internal/logger"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// RequestDecoder decodes query parameters into a typed request struct.
type RequestDecoder struct {
	decoder *schema.Decoder
	logger  *logger.Logger
}

func NewRequestDecoder(l *logger.Logger) *RequestDecoder {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	return &RequestDecoder{
		decoder: decoder,
		logger:  l,
	}
}

// DecodeQuery decodes the request's query string into v. On failure it writes
// a 400 response and returns false; the handler should return immediately.
func (d *RequestDecoder) DecodeQuery(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := d.decoder.Decode(v, r.URL.Query()); err != nil {
		d.logger.Warn().Msgf("could not decode request query: %v", err)

		WriteError(w, r, http.StatusBadRequest, "malformed query parameters")

		return false
	}

	return true
}

// ResultWriter renders handler results as JSON.
type ResultWriter struct {
	logger *logger.Logger
}

func NewResultWriter(l *logger.Logger) *ResultWriter {
	return &ResultWriter{logger: l}
}

func (rw *ResultWriter) WriteResult(w http.ResponseWriter, r *http.Request, v interface{}) {
	render.JSON(w, r, v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, &ErrorResponse{Error: message})
}
