package platform

import "time"

// PeerKind is the structural kind of a conversation partner.
type PeerKind int

const (
	PeerUnknown PeerKind = iota
	PeerUser
	// PeerGroup is a legacy basic group.
	PeerGroup
	// PeerChannel covers broadcast channels and supergroups.
	PeerChannel
)

func (k PeerKind) String() string {
	switch k {
	case PeerUser:
		return "user"
	case PeerGroup:
		return "group"
	case PeerChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Peer is a user, group or channel as the network describes it.
type Peer struct {
	Kind      PeerKind
	ID        int64
	FirstName string
	LastName  string
	Username  string
	Title     string
	Broadcast bool
	HasPhoto  bool
	// Raw is the string form of an entity of unrecognized kind.
	Raw string
}

// Dialog is one conversation together with its summary metadata.
type Dialog struct {
	Peer        Peer
	UnreadCount int
	TopMessage  *Message
}

// Message is a single raw history entry.
type Message struct {
	ID       int
	Out      bool
	Date     time.Time
	Text     string
	HasMedia bool
	// SenderID is zero when the message carries no sender reference.
	SenderID int64
}

// String is the preview form used for chat listings.
func (m Message) String() string {
	switch {
	case m.Text != "":
		return m.Text
	case m.HasMedia:
		return "[media]"
	default:
		return ""
	}
}
