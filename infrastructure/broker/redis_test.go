package broker

import (
	"bkalan/domain/event"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeBroadcast(t *testing.T) {
	req := require.New(t)

	// Given a broadcast as published on the Redis channel
	broadcast := event.Broadcast{Frame: event.JoinedFrame("Omar", "T"), Except: "conn-1"}
	payload, err := json.Marshal(broadcast)
	req.NoError(err)

	// When the relay decodes it
	decoded, err := decodeBroadcast(string(payload))

	// Then the frame and its origin survive the trip
	req.NoError(err)
	req.Equal(broadcast, decoded)
}

func TestDecodeBroadcast_Invalid(t *testing.T) {
	_, err := decodeBroadcast("not-json")
	require.Error(t, err)
}
