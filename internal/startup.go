package internal

import (
	"context"
	mathrand "math/rand/v2"
	"time"

	"go.mau.fi/whatsmeow/store"

	"github.com/gdbrns/go-whatsapp-gemini-bot/internal/bot"
	"github.com/gdbrns/go-whatsapp-gemini-bot/internal/chatlog"
	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/env"
	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/gemini"
	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/log"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-gemini-bot/pkg/whatsapp"
)

var logWriter *chatlog.Writer

func jitterSleep(max time.Duration) {
	if max <= 0 {
		return
	}
	ms := mathrand.Int64N(max.Milliseconds() + 1)
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func reconnectWithRetry(retries int, baseBackoff time.Duration, maxBackoff time.Duration) error {
	if retries <= 1 {
		return pkgWhatsApp.WhatsAppReconnect()
	}
	if baseBackoff <= 0 {
		baseBackoff = 2 * time.Second
	}
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		lastErr = pkgWhatsApp.WhatsAppReconnect()
		if lastErr == nil {
			return nil
		}

		// Exponential backoff with small jitter.
		backoff := baseBackoff * time.Duration(1<<(attempt-1))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		jitter := time.Duration(mathrand.Int64N(int64(500*time.Millisecond) + 1))
		time.Sleep(backoff + jitter)
	}
	return lastErr
}

func Startup() {
	log.Print(nil).Info("Running Startup Tasks")

	// Secrets the REST surface cannot run without.
	_ = env.MustGetEnvString("ADMIN_SECRET_KEY")
	_ = env.MustGetEnvString("JWT_SECRET_KEY")

	ctx := context.Background()

	generator := gemini.NewClientFromEnv()

	pingCtx, pingCancel := context.WithTimeout(ctx, 15*time.Second)
	if err := generator.Ping(pingCtx); err != nil {
		log.Print(nil).WithError(err).Warn("Gemini self-test failed, replies will fall back until the API recovers")
	} else {
		log.Print(nil).Info("Gemini self-test passed")
	}
	pingCancel()

	var logbook bot.Logbook
	logStore, err := chatlog.NewStore()
	if err != nil {
		log.Print(nil).WithError(err).Error("Failed to open chat log store, conversation logging disabled")
	} else {
		chatlog.InitController(logStore)
		logWriter = chatlog.NewWriter(logStore)
		logbook = logWriter
	}

	dispatcher := bot.NewDispatcher(waTransport{}, generator, waDownloader{}, logbook)
	pkgWhatsApp.WhatsAppSetMessageHandler(dispatcher.Handle)

	restoreSession(ctx)
}

func restoreSession(ctx context.Context) {
	devices, err := pkgWhatsApp.WhatsAppDatastore.GetAllDevices(ctx)
	if err != nil {
		log.Print(nil).Error("Failed to Load WhatsApp Client Devices from Datastore")
		return
	}

	var device *store.Device
	for _, candidate := range devices {
		if candidate != nil && candidate.ID != nil {
			device = candidate
			break
		}
	}

	if device == nil {
		log.Print(nil).Info("No paired session found, waiting for login")
		pkgWhatsApp.WhatsAppInitClient(nil)
		return
	}

	jitterMax := env.GetEnvDurationOrDefault("WHATSAPP_STARTUP_RECONNECT_JITTER_MAX", 2*time.Second)
	retries := env.GetEnvIntOrDefault("WHATSAPP_STARTUP_RECONNECT_RETRIES", 5)
	baseBackoff := env.GetEnvDurationOrDefault("WHATSAPP_STARTUP_RECONNECT_BACKOFF_BASE", 2*time.Second)
	maxBackoff := env.GetEnvDurationOrDefault("WHATSAPP_STARTUP_RECONNECT_BACKOFF_MAX", 30*time.Second)

	jid := device.ID.User
	maskJID := jid
	if len(jid) >= 4 {
		maskJID = jid[0:len(jid)-4] + "xxxx"
	}

	jitterSleep(jitterMax)
	log.Print(nil).Info("Restoring WhatsApp Client for " + maskJID)

	pkgWhatsApp.WhatsAppInitClient(device)

	if err := reconnectWithRetry(retries, baseBackoff, maxBackoff); err != nil {
		log.Print(nil).Warn("Failed to reconnect " + maskJID + ": " + err.Error())
		return
	}

	log.Print(nil).Info("Session restored for " + maskJID)
}

// Shutdown releases background resources after the HTTP server has stopped.
func Shutdown() {
	pkgWhatsApp.WhatsAppDisconnect()

	if logWriter != nil {
		logWriter.Shutdown()
	}
}
