package proxy

import "net/http"

// apiError is the OpenAI-shaped error envelope every surfaced failure is
// translated into. Field order matches the alphabetical key order the
// envelope is serialized in: code, message, type.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type apiErrorEnvelope struct {
	Error apiError `json:"error"`
}

func newAPIError(status int, errType, code, message string) (int, apiErrorEnvelope) {
	return status, apiErrorEnvelope{Error: apiError{Code: code, Message: message, Type: errType}}
}

// invalidRequestError surfaces a client-request validation failure: malformed
// JSON, empty model/messages, oversized body, or a missing tool definition.
func invalidRequestError(message string) (int, apiErrorEnvelope) {
	return newAPIError(http.StatusBadRequest, "invalid_request_error", "invalid_request", message)
}

// modelNotFoundError surfaces a resolution miss or Bedrock 404.
func modelNotFoundError(message string) (int, apiErrorEnvelope) {
	return newAPIError(http.StatusNotFound, "invalid_request_error", "model_not_found", message)
}

// internalError surfaces signing, encoding, or dispatch failures internal to
// the proxy itself.
func internalError(message string) (int, apiErrorEnvelope) {
	return newAPIError(http.StatusInternalServerError, "server_error", "server_error", message)
}

// bedrockStatusError maps a non-2xx Bedrock HTTP status (and the message
// extracted from its body) to the proxy's client-facing error surface,
// per the Bedrock-error taxonomy.
func bedrockStatusError(status int, message string) (int, apiErrorEnvelope) {
	switch status {
	case http.StatusNotFound:
		return modelNotFoundError(message)
	case http.StatusForbidden:
		return newAPIError(http.StatusInternalServerError, "server_error", "server_error", message)
	case http.StatusTooManyRequests:
		return newAPIError(http.StatusTooManyRequests, "rate_limit_error", "rate_limit_exceeded", message)
	case http.StatusRequestTimeout:
		return newAPIError(http.StatusRequestTimeout, "server_error", "timeout", message)
	default:
		return newAPIError(http.StatusInternalServerError, "server_error", "server_error", message)
	}
}
