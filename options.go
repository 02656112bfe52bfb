package playground

import "github.com/bt-bridge/agent-playground/shared"

// TokenFetchOptions parameterise the credential request. An empty AgentName
// means no explicit dispatch target.
type TokenFetchOptions struct {
	AgentName     string
	AgentMetadata string
}

// AgentDispatch carries externally supplied initial dispatch parameters.
type AgentDispatch struct {
	AgentName string
	Metadata  string
}

// InitFetchOptions sets the token fetch options from initial once. It does
// nothing when initial is nil or the options were already set, including by
// an earlier user edit. It reports whether the options were set.
func (s *Session) InitFetchOptions(initial *AgentDispatch) bool {
	if initial == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.options != nil {
		return false
	}
	s.options = &TokenFetchOptions{
		AgentName:     initial.AgentName,
		AgentMetadata: initial.Metadata,
	}
	return true
}

// FetchOptions returns the current options and whether they were ever set.
func (s *Session) FetchOptions() (TokenFetchOptions, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.options == nil {
		return TokenFetchOptions{}, false
	}
	return *s.options, true
}

func (s *Session) SetAgentName(name string) error {
	return s.editOptions(func(o *TokenFetchOptions) { o.AgentName = name })
}

func (s *Session) SetAgentMetadata(metadata string) error {
	return s.editOptions(func(o *TokenFetchOptions) { o.AgentMetadata = metadata })
}

// editOptions is rejected while a connection is established. An in-flight
// attempt already holds its own snapshot of the options.
func (s *Session) editOptions(edit func(*TokenFetchOptions)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnected || s.state == StateReconnecting {
		return shared.ErrOptionsLocked
	}
	if s.options == nil {
		s.options = &TokenFetchOptions{}
	}
	edit(s.options)
	return nil
}
