package types

// SuccessEnvelope wraps every successful API payload. Warning carries a
// non-fatal error the client should surface, such as a failed save.
type SuccessEnvelope struct {
	Data    any       `json:"data"`
	Warning *APIError `json:"warning,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
