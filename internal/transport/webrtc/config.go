package webrtc

import (
	"github.com/pion/webrtc/v3"
	"github.com/samber/lo"
)

const (
	DataChannelLabel    = "data"
	DataChannelProtocol = "room-chat"
)

var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
	"stun:stun4.l.google.com:19302",
}

func DefaultSTUNConfig() webrtc.Configuration {
	return ConfigurationFrom(DefaultSTUNServers)
}

// ConfigurationFrom groups servers into a single ICE server entry. Blank
// entries are skipped.
func ConfigurationFrom(servers []string) webrtc.Configuration {
	urls := lo.Compact(servers)
	config := webrtc.Configuration{
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
	}
	if len(urls) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: urls}}
	}
	return config
}

// DefaultDataChannelConfig is ordered and reliable so messages on one
// connection arrive in the order they were sent.
func DefaultDataChannelConfig() *webrtc.DataChannelInit {
	protocolName := DataChannelProtocol
	ordered := true
	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: nil,
		Protocol:       &protocolName,
	}
}
