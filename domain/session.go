package domain

type Status int

const (
	Disconnected Status = iota
	Connected
)

func (s Status) String() string {
	if s == Connected {
		return "CONNECTED"
	}
	return "DISCONNECTED"
}

type Transport int

const (
	TransportNone Transport = iota
	TransportLive
	TransportFallback
)

func (t Transport) String() string {
	switch t {
	case TransportLive:
		return "LIVE"
	case TransportFallback:
		return "FALLBACK"
	default:
		return "NONE"
	}
}

// SessionState drives which affordances a chat surface shows.
// Status is Connected exactly when Transport is Live or Fallback and
// Participant is set.
type SessionState struct {
	Status      Status
	Transport   Transport
	Participant *Participant
}

func (s SessionState) IsConnected() bool {
	return s.Status == Connected
}

// Snapshot is a consistent copy of the session as seen after one mutation.
type Snapshot struct {
	State    SessionState
	Messages []ChatMessage
}
