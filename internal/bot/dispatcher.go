package bot

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/env"
	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/log"
)

// Dispatcher routes classified messages to the generator and relays the
// reply. One inbound event produces at most one outbound text message, and
// no handling failure is allowed to escape into the event loop.
type Dispatcher struct {
	transport    Transport
	generator    Generator
	downloader   MediaDownloader
	logbook      Logbook
	ignoreGroups bool
	ackReaction  string
}

func NewDispatcher(transport Transport, generator Generator, downloader MediaDownloader, logbook Logbook) *Dispatcher {
	return &Dispatcher{
		transport:    transport,
		generator:    generator,
		downloader:   downloader,
		logbook:      logbook,
		ignoreGroups: env.GetEnvBoolOrDefault("BOT_IGNORE_GROUPS", true),
		ackReaction:  env.GetEnvStringOrDefault("BOT_ACK_REACTION", ""),
	}
}

// Handle processes one message event. It never panics and never returns an
// error to the caller; all failures end inside it.
func (d *Dispatcher) Handle(ctx context.Context, evt *events.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.SysErr("bot", fmt.Errorf("panic while handling message: %v", r)).Error("Recovered message handler")
		}
	}()

	result := d.dispatch(ctx, evt)
	if result.Dropped {
		return
	}

	entry := log.BotOp(evt.Info.Sender.String(), "dispatch")
	if result.Succeeded {
		entry.Info("Replied to message")
	} else {
		entry.Warn("Replied with fallback")
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, evt *events.Message) DispatchResult {
	if ctx == nil {
		ctx = context.Background()
	}

	msg, classifyErr := Classify(ctx, evt, d.downloader)

	if d.ignoreGroups && msg.IsGroup {
		return DispatchResult{Dropped: true}
	}
	if !msg.HasContent {
		return DispatchResult{Dropped: true}
	}
	if msg.Kind == KindText && msg.Text == "" {
		return DispatchResult{Dropped: true}
	}
	if msg.IsFromSelf {
		return DispatchResult{Dropped: true}
	}

	if classifyErr != nil {
		log.BotOp(msg.Sender.String(), "classify").WithError(classifyErr).Error("Failed to classify message")
		return d.reply(ctx, msg, ReplyGenericFailure, false)
	}

	log.BotOp(msg.Sender.String(), msg.Kind.String()).Info("Received message")

	if d.ackReaction != "" && msg.MessageID != "" {
		if err := d.transport.React(ctx, msg.Chat, msg.Sender, msg.MessageID, d.ackReaction); err != nil {
			log.BotOp(msg.Sender.String(), "react").WithError(err).Warn("Failed to send ack reaction")
		}
	}

	d.transport.ComposeStatus(ctx, msg.Chat, true, false)
	defer d.transport.ComposeStatus(ctx, msg.Chat, false, false)

	switch msg.Kind {
	case KindText:
		response, err := d.generator.GenerateText(ctx, msg.Text)
		if err != nil {
			log.BotOp(msg.Sender.String(), "generate").WithError(err).Error("Text generation failed")
			return d.reply(ctx, msg, FallbackReply(err), false)
		}
		return d.reply(ctx, msg, response, true)
	case KindImage:
		response, err := d.generator.GenerateFromImage(ctx, msg.Text, msg.Image)
		if err != nil {
			log.BotOp(msg.Sender.String(), "generate").WithError(err).Error("Image generation failed")
			return d.reply(ctx, msg, FallbackReply(err), false)
		}
		return d.reply(ctx, msg, response, true)
	case KindVideo:
		return d.reply(ctx, msg, ReplyVideoRefusal, true)
	case KindAudio:
		return d.reply(ctx, msg, ReplyAudioRefusal, true)
	case KindDocument:
		return d.reply(ctx, msg, ReplyDocumentRefusal, true)
	default:
		return d.reply(ctx, msg, ReplyGreeting, true)
	}
}

// reply sends the outbound text, retrying once on transport failure, and
// records the turn in the logbook.
func (d *Dispatcher) reply(ctx context.Context, msg InboundMessage, response string, succeeded bool) DispatchResult {
	if _, err := d.transport.SendText(ctx, msg.Chat, response); err != nil {
		log.BotOp(msg.Sender.String(), "send").WithError(err).Error("Failed to send reply")
		if _, err := d.transport.SendText(ctx, msg.Chat, response); err != nil {
			log.BotOp(msg.Sender.String(), "send").WithError(err).Error("Failed to send reply on retry")
			return DispatchResult{OutboundText: response, Succeeded: false}
		}
	}

	if d.logbook != nil {
		d.logbook.Record(msg.Sender.User, msg.Text, response)
	}

	return DispatchResult{OutboundText: response, Succeeded: succeeded}
}
