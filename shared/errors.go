package shared

import "errors"

var (
	ErrNoLogger           = errors.New("no logger provided")
	ErrNoTransport        = errors.New("no transport provided")
	ErrNoCredentialSource = errors.New("no credential source provided")
	ErrNoActiveSession    = errors.New("no active session")
	ErrNoAgent            = errors.New("no agent available")
	ErrEmptyRPCMethod     = errors.New("rpc method is empty")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrOptionsLocked      = errors.New("token fetch options cannot change while connected")
	ErrAttributesReadOnly = errors.New("agent attributes are read-only")
	ErrSessionEnded       = errors.New("session ended")
	ErrRemoteDisconnected = errors.New("remote channel disconnected")
	ErrDeviceUnavailable  = errors.New("device unavailable")
	ErrNoCredential       = errors.New("credential is missing server url or token")
	ErrNoPrinter          = errors.New("no printer provided")
	ErrNoPlayground       = errors.New("no playground provided")
	ErrMissingServerURL   = errors.New("server url is required")
	ErrMissingAPIKey      = errors.New("api key and secret are required")
	ErrMissingEndpointURL = errors.New("endpoint url is required")
)
