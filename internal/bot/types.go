package bot

import (
	"context"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
)

// MessageKind is the content class of an inbound message. Exactly one kind is
// assigned to every message the classifier sees.
type MessageKind int

const (
	KindUnsupported MessageKind = iota
	KindText
	KindImage
	KindVideo
	KindAudio
	KindDocument
)

func (k MessageKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindDocument:
		return "document"
	default:
		return "unsupported"
	}
}

// InboundMessage is the classifier's view of a received message, reduced to
// what the dispatcher needs to route it.
type InboundMessage struct {
	MessageID  string
	Sender     types.JID
	Chat       types.JID
	IsFromSelf bool
	IsGroup    bool
	HasContent bool // false when the event carried no payload object at all
	Kind       MessageKind
	Text       string
	Image      []byte
}

// DispatchResult reports what the dispatcher did with one message.
type DispatchResult struct {
	Dropped      bool
	OutboundText string
	Succeeded    bool
}

// Generator produces a reply for a prompt, optionally conditioned on an image.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateFromImage(ctx context.Context, prompt string, image []byte) (string, error)
}

// Transport delivers outbound traffic back to the chat network.
type Transport interface {
	SendText(ctx context.Context, chat types.JID, message string) (string, error)
	ComposeStatus(ctx context.Context, chat types.JID, isComposing bool, isAudio bool)
	React(ctx context.Context, chat types.JID, sender types.JID, messageID string, emoji string) error
}

// MediaDownloader materializes inbound media into memory.
type MediaDownloader interface {
	DownloadImage(ctx context.Context, img *waE2E.ImageMessage) ([]byte, error)
}

// Logbook records a handled conversation turn. Implementations must not
// block the caller.
type Logbook interface {
	Record(sender string, message string, response string)
}
