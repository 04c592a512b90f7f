package session

import (
	"bkalan/contract"
	"bkalan/domain"
)

// transport is the channel a connected session talks through. Only the live
// variant owns a resource.
type transport interface {
	kind() domain.Transport
}

type noTransport struct{}

func (noTransport) kind() domain.Transport { return domain.TransportNone }

type liveTransport struct {
	channel contract.LiveChannel
}

func (liveTransport) kind() domain.Transport { return domain.TransportLive }

type fallbackTransport struct{}

func (fallbackTransport) kind() domain.Transport { return domain.TransportFallback }
