package internal

import (
	"context"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"

	pkgWhatsApp "github.com/gdbrns/go-whatsapp-gemini-bot/pkg/whatsapp"
)

// waTransport adapts the WhatsApp client to the dispatcher's outbound needs.
type waTransport struct{}

func (waTransport) SendText(ctx context.Context, chat types.JID, message string) (string, error) {
	return pkgWhatsApp.WhatsAppSendText(ctx, chat, message)
}

func (waTransport) ComposeStatus(ctx context.Context, chat types.JID, isComposing bool, isAudio bool) {
	pkgWhatsApp.WhatsAppComposeStatus(ctx, chat, isComposing, isAudio)
}

func (waTransport) React(ctx context.Context, chat types.JID, sender types.JID, messageID string, emoji string) error {
	return pkgWhatsApp.WhatsAppMessageReact(ctx, chat, sender, messageID, emoji)
}

// waDownloader adapts media retrieval for the classifier.
type waDownloader struct{}

func (waDownloader) DownloadImage(ctx context.Context, img *waE2E.ImageMessage) ([]byte, error) {
	return pkgWhatsApp.WhatsAppDownloadImage(ctx, img)
}
