package bot

import (
	"errors"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/gemini"
)

// Canned replies for messages the bot refuses or greets. The bot speaks
// Indonesian to its users.
const (
	ReplyVideoRefusal    = "Maaf, saya belum bisa memproses video. Silakan kirim gambar atau teks."
	ReplyAudioRefusal    = "Maaf, saya belum bisa memproses audio. Silakan kirim gambar atau teks."
	ReplyDocumentRefusal = "Maaf, saya belum bisa memproses dokumen. Silakan kirim gambar atau teks."
	ReplyGreeting        = "Halo! Saya adalah AI Assistant. Kirim pesan teks atau gambar untuk berinteraksi dengan saya."
	ReplyGenericFailure  = "Maaf, terjadi kesalahan saat memproses pesan Anda. Silakan coba lagi nanti."
)

var fallbackByKind = map[gemini.ErrorKind]string{
	gemini.ErrInvalidRequest:    "Maaf, format pesan tidak valid untuk diproses.",
	gemini.ErrUnauthorized:      "Maaf, terjadi masalah autentikasi API. Silakan periksa API Key.",
	gemini.ErrRateLimited:       "Maaf, terlalu banyak permintaan. Silakan tunggu sebentar dan coba lagi.",
	gemini.ErrServerFault:       "Maaf, server Gemini sedang bermasalah. Silakan coba lagi nanti.",
	gemini.ErrTimeout:           "Maaf, permintaan memakan waktu terlalu lama. Silakan coba lagi.",
	gemini.ErrUnreachable:       "Maaf, tidak dapat terhubung ke server Gemini. Periksa koneksi internet Anda.",
	gemini.ErrMalformedResponse: "Maaf, saya tidak dapat memproses permintaan Anda saat ini.",
}

// FallbackReply maps a generation failure to the apology sent in place of a
// generated answer.
func FallbackReply(err error) string {
	var genErr *gemini.GenerationError
	if errors.As(err, &genErr) {
		if reply, ok := fallbackByKind[genErr.Kind]; ok {
			return reply
		}
	}
	return ReplyGenericFailure
}
