package ws

import "kaillera-relay/internal/eventfeed"

const ProtocolVersion = "1.0"

// FilterMessage narrows the stream to one game. GameID 0 clears the filter.
type FilterMessage struct {
	Type   string `json:"type"`
	GameID uint16 `json:"game_id"`
}

type EventMessage struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Record          eventfeed.Record `json:"record"`
}

type FilterResult struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ok              bool   `json:"ok"`
	GameID          uint16 `json:"game_id"`
	Error           string `json:"error,omitempty"`
}
