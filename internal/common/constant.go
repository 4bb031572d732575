package common

// Content types of published objects.
const (
	ContentTypeZip  = "application/zip"
	ContentTypeJSON = "application/json"
)

// AuthorizationHeaderName carries the bearer token on federation requests.
const AuthorizationHeaderName = "Authorization"
