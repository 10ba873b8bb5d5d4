// Package api defines the wire protocol between participants and the coordinator.
//
// Each message is a JSON-encoded packet of the following structure:
//
//	id - (optional) a unique packet id, set when the sender waits for a reply;
//	 t - (required) one of the predefined packet types;
//	 p - (optional) packet payload with type-specific data.
//
// Packets differentiate by their predefined types with which it is possible
// to unwrap the payload into distinct request/response data structures.
package api

import "github.com/goccy/go-json"

type PT uint16

// Packet codes:
//
//	1xx - room presence
//	2xx - peer negotiation relay
//	3xx - room broadcast extras
const (
	JoinRoom     PT = 101
	RoomJoined   PT = 102
	UserJoined   PT = 103
	UserLeft     PT = 104
	Offer        PT = 201
	Answer       PT = 202
	IceCandidate PT = 203
	ChatMessage  PT = 301
	NewMessage   PT = 302
	FileShare    PT = 303
	NewFile      PT = 304
)

func (p PT) String() string {
	switch p {
	case JoinRoom:
		return "JoinRoom"
	case RoomJoined:
		return "RoomJoined"
	case UserJoined:
		return "UserJoined"
	case UserLeft:
		return "UserLeft"
	case Offer:
		return "Offer"
	case Answer:
		return "Answer"
	case IceCandidate:
		return "IceCandidate"
	case ChatMessage:
		return "ChatMessage"
	case NewMessage:
		return "NewMessage"
	case FileShare:
		return "FileShare"
	case NewFile:
		return "NewFile"
	default:
		return "Unknown"
	}
}

// IsRelay reports whether the packet type is forwarded
// peer-to-peer through the coordinator.
func (p PT) IsRelay() bool { return p == Offer || p == Answer || p == IceCandidate }

func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}
