package dueldto

// ErrorBody is the JSON error payload of the REST API and of invalid frames.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ErrorBody) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "duel arena error"
}
