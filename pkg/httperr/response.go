package httperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ResponseContent is the body of a structured error response.
type ResponseContent struct {
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail"`
	Extra      any    `json:"extra,omitempty"`
}

// ContentFor builds the response content for err. Errors without a status
// code become 500s with the error text as detail.
func ContentFor(err error) (ResponseContent, http.Header) {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		detail := httpErr.Detail
		if detail == "" {
			detail = http.StatusText(httpErr.StatusCode)
		}
		return ResponseContent{
			StatusCode: httpErr.StatusCode,
			Detail:     detail,
			Extra:      httpErr.Extra,
		}, httpErr.Headers
	}

	return ResponseContent{
		StatusCode: http.StatusInternalServerError,
		Detail:     err.Error(),
	}, nil
}

// WriteResponse writes the structured JSON error response for err.
func WriteResponse(w http.ResponseWriter, err error) {
	content, headers := ContentFor(err)

	for key, values := range headers {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(content.StatusCode)

	if encodeErr := json.NewEncoder(w).Encode(content); encodeErr != nil {
		// Headers are already sent, nothing left to do.
		_ = encodeErr
	}
}
