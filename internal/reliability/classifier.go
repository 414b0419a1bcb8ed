package reliability

import "net/http"

// IsNotFoundHTTPStatus reports whether a REST status means the entity does not
// exist, as opposed to a transient failure.
func IsNotFoundHTTPStatus(code int) bool {
	switch code {
	case http.StatusNotFound, http.StatusForbidden:
		return true
	default:
		return false
	}
}

// IsTransientHTTPStatus classifies REST statuses worth surfacing as
// collaborator errors rather than as missing entities.
func IsTransientHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
