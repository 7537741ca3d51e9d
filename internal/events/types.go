package events

// Frame types the server emits outside the event kinds.
const (
	TypeHello = "HELLO"
	TypeError = "ERROR"
)

// Kind is the closed set of client event types. KindUnknown stands for any
// well-formed type string the relay does not handle.
type Kind int

const (
	KindUnknown Kind = iota
	KindCreateConvo
	KindUpdateConvo
	KindSendMessage
	KindDeleteMessage
	KindUpdateMessage
	KindMessageDelivered
	KindMessageSeen
)

var kindNames = [...]string{
	KindUnknown:          "UNKNOWN",
	KindCreateConvo:      "CREATE_CONVO",
	KindUpdateConvo:      "UPDATE_CONVO",
	KindSendMessage:      "SEND_MESSAGE",
	KindDeleteMessage:    "DELETE_MESSAGE",
	KindUpdateMessage:    "UPDATE_MESSAGE",
	KindMessageDelivered: "MESSAGE_DELIVERED",
	KindMessageSeen:      "MESSAGE_SEEN",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// ParseKind maps a wire type to its Kind, or KindUnknown.
func ParseKind(s string) Kind {
	for k := KindCreateConvo; int(k) < len(kindNames); k++ {
		if kindNames[k] == s {
			return k
		}
	}
	return KindUnknown
}

// Kinds lists every handled kind in wire order.
func Kinds() []Kind {
	return []Kind{
		KindCreateConvo,
		KindUpdateConvo,
		KindSendMessage,
		KindDeleteMessage,
		KindUpdateMessage,
		KindMessageDelivered,
		KindMessageSeen,
	}
}
