package types

// Envelope is the success body. Meta is only set for list pages.
type Envelope[T any] struct {
	Data T   `json:"data"`
	Meta any  `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
