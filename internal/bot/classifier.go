package bot

import (
	"context"
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// DefaultImagePrompt is used when an image arrives without a caption.
const DefaultImagePrompt = "Describe this image"

// Classify reduces a raw message event to an InboundMessage. Image content is
// fully materialized through the downloader so the dispatcher never touches
// the media transport. On download failure the returned message still carries
// its routing fields so guards can run.
func Classify(ctx context.Context, evt *events.Message, downloader MediaDownloader) (InboundMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	msg := InboundMessage{
		MessageID:  evt.Info.ID,
		Sender:     evt.Info.Sender,
		Chat:       evt.Info.Chat,
		IsFromSelf: evt.Info.IsFromMe,
		IsGroup:    evt.Info.Chat.Server == types.GroupServer,
		Kind:       KindUnsupported,
	}

	raw := evt.Message
	if raw == nil {
		return msg, nil
	}
	msg.HasContent = true

	switch {
	case raw.Conversation != nil:
		msg.Kind = KindText
		msg.Text = strings.TrimSpace(raw.GetConversation())
	case raw.ExtendedTextMessage != nil:
		msg.Kind = KindText
		msg.Text = strings.TrimSpace(raw.ExtendedTextMessage.GetText())
	case raw.ImageMessage != nil:
		msg.Kind = KindImage
		msg.Text = strings.TrimSpace(raw.ImageMessage.GetCaption())
		if msg.Text == "" {
			msg.Text = DefaultImagePrompt
		}
		image, err := downloader.DownloadImage(ctx, raw.ImageMessage)
		if err != nil {
			return msg, fmt.Errorf("download image: %w", err)
		}
		msg.Image = image
	case raw.VideoMessage != nil:
		msg.Kind = KindVideo
	case raw.AudioMessage != nil:
		msg.Kind = KindAudio
	case raw.DocumentMessage != nil:
		msg.Kind = KindDocument
	}

	return msg, nil
}
