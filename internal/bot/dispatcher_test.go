package bot

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/gemini"
)

type sentMessage struct {
	chat types.JID
	text string
}

type fakeTransport struct {
	sent      []sentMessage
	failSends int
	composing []bool
	reactions []string
}

func (f *fakeTransport) SendText(ctx context.Context, chat types.JID, message string) (string, error) {
	if f.failSends > 0 {
		f.failSends--
		return "", errors.New("send failed")
	}
	f.sent = append(f.sent, sentMessage{chat: chat, text: message})
	return "OUT-1", nil
}

func (f *fakeTransport) ComposeStatus(ctx context.Context, chat types.JID, isComposing bool, isAudio bool) {
	f.composing = append(f.composing, isComposing)
}

func (f *fakeTransport) React(ctx context.Context, chat types.JID, sender types.JID, messageID string, emoji string) error {
	f.reactions = append(f.reactions, emoji)
	return nil
}

type fakeGenerator struct {
	reply   string
	err     error
	panics  bool
	prompts []string
	images  [][]byte
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if f.panics {
		panic("generator exploded")
	}
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeGenerator) GenerateFromImage(ctx context.Context, prompt string, image []byte) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.images = append(f.images, image)
	return f.reply, f.err
}

type logRecord struct {
	sender   string
	message  string
	response string
}

type fakeLogbook struct {
	records []logRecord
}

func (f *fakeLogbook) Record(sender string, message string, response string) {
	f.records = append(f.records, logRecord{sender: sender, message: message, response: response})
}

type fixture struct {
	transport  *fakeTransport
	generator  *fakeGenerator
	downloader *fakeDownloader
	logbook    *fakeLogbook
	dispatcher *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		transport:  &fakeTransport{},
		generator:  &fakeGenerator{reply: "generated reply"},
		downloader: &fakeDownloader{image: []byte{0xAA}},
		logbook:    &fakeLogbook{},
	}
	f.dispatcher = NewDispatcher(f.transport, f.generator, f.downloader, f.logbook)
	return f
}

func textEvent(text string) *waE2E.Message {
	return &waE2E.Message{Conversation: proto.String(text)}
}

func TestDispatchText(t *testing.T) {
	f := newFixture(t)
	evt := newEvent(userChat(), false, textEvent("  apa kabar?  "))

	result := f.dispatcher.dispatch(context.Background(), evt)

	if result.Dropped || !result.Succeeded {
		t.Fatalf("result = %+v, want successful dispatch", result)
	}
	if len(f.generator.prompts) != 1 || f.generator.prompts[0] != "apa kabar?" {
		t.Errorf("prompts = %v, want trimmed text", f.generator.prompts)
	}
	if len(f.transport.sent) != 1 || f.transport.sent[0].text != "generated reply" {
		t.Fatalf("sent = %v, want one generated reply", f.transport.sent)
	}
	if len(f.logbook.records) != 1 {
		t.Fatalf("records = %v, want one entry", f.logbook.records)
	}
	rec := f.logbook.records[0]
	if rec.sender != "628111222333" || rec.message != "apa kabar?" || rec.response != "generated reply" {
		t.Errorf("record = %+v", rec)
	}
	if len(f.transport.composing) != 2 || !f.transport.composing[0] || f.transport.composing[1] {
		t.Errorf("composing sequence = %v, want [true false]", f.transport.composing)
	}
}

func TestDispatchImage(t *testing.T) {
	f := newFixture(t)
	evt := newEvent(userChat(), false, &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{Caption: proto.String("jelaskan gambar ini")},
	})

	result := f.dispatcher.dispatch(context.Background(), evt)

	if !result.Succeeded {
		t.Fatalf("result = %+v", result)
	}
	if len(f.generator.images) != 1 || len(f.generator.images[0]) != 1 {
		t.Errorf("images = %v, want downloaded bytes forwarded", f.generator.images)
	}
	if f.generator.prompts[0] != "jelaskan gambar ini" {
		t.Errorf("prompt = %q", f.generator.prompts[0])
	}
}

func TestDispatchGuards(t *testing.T) {
	cases := []struct {
		name string
		evt  func() *fixtureEvent
	}{
		{"group message", func() *fixtureEvent {
			group := types.NewJID("12036304-1510", types.GroupServer)
			return &fixtureEvent{chat: group, fromMe: false, message: textEvent("hi")}
		}},
		{"empty text", func() *fixtureEvent {
			return &fixtureEvent{chat: userChat(), fromMe: false, message: textEvent("   ")}
		}},
		{"own message", func() *fixtureEvent {
			return &fixtureEvent{chat: userChat(), fromMe: true, message: textEvent("hi")}
		}},
		{"no payload", func() *fixtureEvent {
			return &fixtureEvent{chat: userChat(), fromMe: false, message: nil}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			setup := tc.evt()
			evt := newEvent(setup.chat, setup.fromMe, setup.message)

			result := f.dispatcher.dispatch(context.Background(), evt)

			if !result.Dropped {
				t.Errorf("result = %+v, want dropped", result)
			}
			if len(f.transport.sent) != 0 {
				t.Errorf("sent = %v, want none", f.transport.sent)
			}
			if len(f.generator.prompts) != 0 {
				t.Errorf("prompts = %v, want none", f.generator.prompts)
			}
			if len(f.logbook.records) != 0 {
				t.Errorf("records = %v, want none for dropped message", f.logbook.records)
			}
		})
	}
}

type fixtureEvent struct {
	chat    types.JID
	fromMe  bool
	message *waE2E.Message
}

func TestDispatchGroupAllowed(t *testing.T) {
	t.Setenv("BOT_IGNORE_GROUPS", "false")
	f := newFixture(t)

	group := types.NewJID("12036304-1510", types.GroupServer)
	evt := newEvent(group, false, textEvent("halo grup"))

	result := f.dispatcher.dispatch(context.Background(), evt)

	if result.Dropped {
		t.Fatal("group message dropped with BOT_IGNORE_GROUPS=false")
	}
	if len(f.transport.sent) != 1 {
		t.Errorf("sent = %v, want one reply", f.transport.sent)
	}
}

func TestDispatchCannedReplies(t *testing.T) {
	cases := []struct {
		name    string
		message *waE2E.Message
		want    string
	}{
		{"video", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{}}, ReplyVideoRefusal},
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{}}, ReplyAudioRefusal},
		{"document", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{}}, ReplyDocumentRefusal},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, ReplyGreeting},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			evt := newEvent(userChat(), false, tc.message)

			result := f.dispatcher.dispatch(context.Background(), evt)

			if !result.Succeeded {
				t.Errorf("result = %+v, want success", result)
			}
			if len(f.transport.sent) != 1 || f.transport.sent[0].text != tc.want {
				t.Errorf("sent = %v, want %q", f.transport.sent, tc.want)
			}
			if len(f.generator.prompts) != 0 {
				t.Errorf("generator called for %s", tc.name)
			}
		})
	}
}

func TestDispatchFallbackByErrorKind(t *testing.T) {
	cases := []struct {
		kind gemini.ErrorKind
		want string
	}{
		{gemini.ErrRateLimited, "Maaf, terlalu banyak permintaan. Silakan tunggu sebentar dan coba lagi."},
		{gemini.ErrServerFault, "Maaf, server Gemini sedang bermasalah. Silakan coba lagi nanti."},
		{gemini.ErrTimeout, "Maaf, permintaan memakan waktu terlalu lama. Silakan coba lagi."},
		{gemini.ErrUnreachable, "Maaf, tidak dapat terhubung ke server Gemini. Periksa koneksi internet Anda."},
		{gemini.ErrMalformedResponse, "Maaf, saya tidak dapat memproses permintaan Anda saat ini."},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			f := newFixture(t)
			f.generator.err = &gemini.GenerationError{Kind: tc.kind}
			evt := newEvent(userChat(), false, textEvent("hi"))

			result := f.dispatcher.dispatch(context.Background(), evt)

			if result.Succeeded {
				t.Error("result marked successful despite generation failure")
			}
			if len(f.transport.sent) != 1 || f.transport.sent[0].text != tc.want {
				t.Errorf("sent = %v, want %q", f.transport.sent, tc.want)
			}
		})
	}
}

func TestDispatchClassifyFailure(t *testing.T) {
	f := newFixture(t)
	f.downloader.err = errors.New("media expired")
	evt := newEvent(userChat(), false, &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}})

	result := f.dispatcher.dispatch(context.Background(), evt)

	if result.Succeeded {
		t.Error("result marked successful despite classify failure")
	}
	if len(f.transport.sent) != 1 || f.transport.sent[0].text != ReplyGenericFailure {
		t.Errorf("sent = %v, want generic apology", f.transport.sent)
	}
	if len(f.generator.prompts) != 0 {
		t.Error("generator called on classify failure")
	}
}

func TestDispatchSendRetry(t *testing.T) {
	f := newFixture(t)
	f.transport.failSends = 1
	evt := newEvent(userChat(), false, textEvent("hi"))

	result := f.dispatcher.dispatch(context.Background(), evt)

	if !result.Succeeded {
		t.Errorf("result = %+v, want success after retry", result)
	}
	if len(f.transport.sent) != 1 {
		t.Errorf("sent = %v, want exactly one delivered reply", f.transport.sent)
	}
	if len(f.logbook.records) != 1 {
		t.Errorf("records = %v, want one entry", f.logbook.records)
	}
}

func TestDispatchSendGivesUp(t *testing.T) {
	f := newFixture(t)
	f.transport.failSends = 2
	evt := newEvent(userChat(), false, textEvent("hi"))

	result := f.dispatcher.dispatch(context.Background(), evt)

	if result.Succeeded {
		t.Error("result marked successful despite delivery failure")
	}
	if len(f.transport.sent) != 0 {
		t.Errorf("sent = %v, want none", f.transport.sent)
	}
	if len(f.logbook.records) != 0 {
		t.Errorf("records = %v, want none when delivery failed", f.logbook.records)
	}
}

func TestDispatchAckReaction(t *testing.T) {
	t.Setenv("BOT_ACK_REACTION", "👍")
	f := newFixture(t)
	evt := newEvent(userChat(), false, textEvent("hi"))

	f.dispatcher.dispatch(context.Background(), evt)

	if len(f.transport.reactions) != 1 || f.transport.reactions[0] != "👍" {
		t.Errorf("reactions = %v, want one ack", f.transport.reactions)
	}
}

func TestHandleContainsPanic(t *testing.T) {
	f := newFixture(t)
	f.generator.panics = true
	evt := newEvent(userChat(), false, textEvent("hi"))

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic escaped Handle: %v", r)
		}
	}()

	f.dispatcher.Handle(context.Background(), evt)
}
