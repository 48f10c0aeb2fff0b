package models

import "time"

// RawFrame is one decoded unit received from the transport. On the wire it is
// a two element array [channel, payload]; Value holds whatever the decoder
// produced so the router can classify malformed shapes.
type RawFrame struct {
	Value      any
	Size       int
	ReceivedAt time.Time
}

// JoinMessage subscribes the connection to one channel.
type JoinMessage struct {
	Channel string `json:"channel"`
	MsgType string `json:"msg_type"`
}

// NewJoinMessage builds the join request for channel.
func NewJoinMessage(channel string) JoinMessage {
	return JoinMessage{Channel: channel, MsgType: "join"}
}
