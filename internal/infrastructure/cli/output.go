package cli

import (
	"encoding/json"
	"io"
)

const (
	errorNotFound   = "not_found"
	errorBadRequest = "bad_request"
	errorInternal   = "internal_error"
)

// ErrorResponse represents an error written to stderr
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON prints data as indented JSON
func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeError(w io.Writer, kind string, err error) {
	_ = writeJSON(w, ErrorResponse{
		Error:   kind,
		Message: err.Error(),
	})
}
