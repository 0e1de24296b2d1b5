package transport

import "encoding/json"

// Codes carried by error envelopes that have no domain.ErrorCode
// counterpart. Every other code is a domain error code.
const (
	CodeDegraded = "DEGRADED"
	CodeTimeout  = "TIMEOUT"
)

// Envelope wraps every questlog response. Status is "success" or "error";
// Code is set only on errors.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

// NewError returns an error envelope. meta carries extra detail such as the
// dependency map of a degraded health check.
func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
