package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"
	"github.com/sunshineplan/imgconv"

	qrCode "github.com/skip2/go-qrcode"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/env"
	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/log"
)

var WhatsAppDatastore *sqlstore.Container

var (
	clientMu               sync.RWMutex
	whatsAppClient         *whatsmeow.Client
	WhatsAppClientProxyURL string

	messageHandlerMu sync.RWMutex
	messageHandler   func(ctx context.Context, evt *events.Message)

	imageMaxWidth int

	version struct {
		Major int
		Minor int
		Patch int
	}
)

const (
	qrChannelWaitTimeout    = 2 * time.Minute
	pairPhoneRequestTimeout = 90 * time.Second
	logoutRequestTimeout    = 30 * time.Second
	storeCleanupTimeout     = 5 * time.Second
)

func init() {
	var err error

	dbType, err := env.GetEnvString("WHATSAPP_DATASTORE_TYPE")
	if err != nil {
		log.Print(nil).WithError(err).Fatal("Error parsing WHATSAPP_DATASTORE_TYPE")
	}

	dbURI, err := env.GetEnvString("WHATSAPP_DATASTORE_URI")
	if err != nil {
		log.Print(nil).WithError(err).Fatal("Error parsing WHATSAPP_DATASTORE_URI")
	}

	normalizedDriver := normalizeDatastoreDriver(dbType)
	dbURI = normalizeDatastoreDSN(normalizedDriver, dbURI)

	log.Print(nil).Info("Initializing WhatsApp datastore with driver=" + normalizedDriver)

	datastore, err := sqlstore.New(context.Background(), normalizedDriver, dbURI, nil)
	if err != nil {
		log.Print(nil).WithError(err).Fatal("Failed to initialize WhatsApp client datastore")
	}

	WhatsAppClientProxyURL, _ = env.GetEnvString("WHATSAPP_CLIENT_PROXY_URL")
	imageMaxWidth = env.GetEnvIntOrDefault("BOT_IMAGE_MAX_WIDTH", 1024)

	WhatsAppDatastore = datastore

	if err := datastore.Upgrade(context.Background()); err != nil {
		log.Print(nil).WithError(err).Fatal("Failed to upgrade datastore schema")
	}

	log.Print(nil).Info("database is ok")
}

func normalizeDatastoreDriver(driver string) string {
	switch strings.ToLower(driver) {
	case "postgresql", "postgres", "pgx":
		return "pgx"
	default:
		return strings.ToLower(driver)
	}
}

func normalizeDatastoreDSN(driver string, dsn string) string {
	if driver != "pgx" {
		return dsn
	}
	appendParam := func(current string, key string, value string) string {
		if strings.Contains(current, key+"=") {
			return current
		}
		separator := "?"
		if strings.Contains(current, "?") {
			if strings.HasSuffix(current, "?") || strings.HasSuffix(current, "&") {
				separator = ""
			} else {
				separator = "&"
			}
		}
		return current + separator + key + "=" + value
	}
	dsn = appendParam(dsn, "prefer_simple_protocol", "true")
	dsn = appendParam(dsn, "statement_cache_capacity", "0")
	dsn = appendParam(dsn, "default_query_exec_mode", "simple_protocol")
	return dsn
}

func getClient() *whatsmeow.Client {
	clientMu.RLock()
	defer clientMu.RUnlock()
	return whatsAppClient
}

func setClient(client *whatsmeow.Client) {
	clientMu.Lock()
	whatsAppClient = client
	clientMu.Unlock()
}

func currentClient() (*whatsmeow.Client, error) {
	client := getClient()
	if client == nil {
		return nil, errors.New("WhatsApp Client is not Valid")
	}
	return client, nil
}

func maskJIDForLog(jid string) string {
	if len(jid) < 4 {
		return jid
	}
	return jid[0:len(jid)-4] + "xxxx"
}

// WhatsAppSetMessageHandler registers the function invoked for every inbound
// message event. Register before connecting so no event is missed.
func WhatsAppSetMessageHandler(handler func(ctx context.Context, evt *events.Message)) {
	messageHandlerMu.Lock()
	messageHandler = handler
	messageHandlerMu.Unlock()
}

func getMessageHandler() func(ctx context.Context, evt *events.Message) {
	messageHandlerMu.RLock()
	defer messageHandlerMu.RUnlock()
	return messageHandler
}

func WhatsAppInitClient(device *store.Device) {
	var err error

	if getClient() == nil {
		if device == nil {
			device = WhatsAppDatastore.NewDevice()
		}

		store.DeviceProps.Os = proto.String(runtime.GOOS)
		store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
		store.DeviceProps.RequireFullSync = proto.Bool(false)

		version.Major, err = env.GetEnvInt("WHATSAPP_VERSION_MAJOR")
		if err == nil {
			store.DeviceProps.Version.Primary = proto.Uint32(uint32(version.Major))
		}
		version.Minor, err = env.GetEnvInt("WHATSAPP_VERSION_MINOR")
		if err == nil {
			store.DeviceProps.Version.Secondary = proto.Uint32(uint32(version.Minor))
		}
		version.Patch, err = env.GetEnvInt("WHATSAPP_VERSION_PATCH")
		if err == nil {
			store.DeviceProps.Version.Tertiary = proto.Uint32(uint32(version.Patch))
		}

		client := whatsmeow.NewClient(device, nil)

		if len(WhatsAppClientProxyURL) > 0 {
			client.SetProxyAddress(WhatsAppClientProxyURL)
		}

		client.EnableAutoReconnect = true
		client.AutoTrustIdentity = true

		client.AddEventHandler(handleWhatsAppEvents)

		setClient(client)
	}
}

func handleWhatsAppEvents(evt interface{}) {
	switch e := evt.(type) {
	case *events.Message:
		if handler := getMessageHandler(); handler != nil {
			handler(context.Background(), e)
		}
	case *events.Connected:
		log.SessionOp("connected").Info("Client connected: " + maskJIDForLog(WhatsAppGetOwnJID()))
	case *events.Disconnected:
		log.SessionOp("disconnected").Warn("Client disconnected")
	case *events.LoggedOut:
		client, err := currentClient()
		if err == nil {
			client.Disconnect()
		}
		setClient(nil)
		log.SessionOp("logged-out").Warn("Client logged out, session removed")
	case *events.StreamReplaced:
		client, err := currentClient()
		if err == nil {
			client.Disconnect()
		}
		setClient(nil)
		log.SessionOp("stream-replaced").Warn("Client stream replaced by another session")
	case *events.KeepAliveTimeout:
		log.SessionOp("keepalive-timeout").Warn(fmt.Sprintf("Client keepalive timeout, errors=%d, lastSuccess=%s", e.ErrorCount, e.LastSuccess.Format(time.RFC3339)))
	case *events.TemporaryBan:
		log.SessionOp("temporary-ban").Error(fmt.Sprintf("Client temporarily banned, reason=%s, expires=%s", e.Code, e.Expire))
	case *events.ConnectFailure:
		log.SessionOp("connect-failure").Error(fmt.Sprintf("Client connection failure, reason=%s, message=%s", e.Reason, e.Message))
	}
}

func WhatsAppGetOwnJID() string {
	client := getClient()
	if client == nil || client.Store.ID == nil {
		return ""
	}
	return client.Store.ID.String()
}

func WhatsAppGenerateQR(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) (string, int, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return "", 0, false, ctx.Err()
		case evt, ok := <-qrChan:
			if !ok {
				return "", 0, false, errors.New("whatsapp qr channel closed before delivering a code")
			}
			switch {
			case evt.Event == "code":
				qrPNG, err := qrCode.Encode(evt.Code, qrCode.Medium, 256)
				if err != nil {
					return "", 0, false, err
				}
				timeout := int(evt.Timeout.Seconds())
				return base64.StdEncoding.EncodeToString(qrPNG), timeout, false, nil
			case evt.Event == whatsmeow.QRChannelSuccess.Event:
				return "", 0, true, nil
			case evt.Event == whatsmeow.QRChannelTimeout.Event:
				return "", 0, false, errors.New("whatsapp qr channel timed out")
			case evt.Event == whatsmeow.QRChannelErrUnexpectedEvent.Event:
				return "", 0, false, errors.New("whatsapp qr channel entered an unexpected state")
			case evt.Event == whatsmeow.QRChannelClientOutdated.Event:
				return "", 0, false, errors.New("whatsapp client version is outdated for QR pairing")
			case evt.Event == whatsmeow.QRChannelScannedWithoutMultidevice.Event:
				return "", 0, false, errors.New("whatsapp qr scanned without multi-device enabled")
			case evt.Event == "error":
				if evt.Error != nil {
					return "", 0, false, evt.Error
				}
				return "", 0, false, errors.New("whatsapp qr channel reported an unspecified error")
			}
		}
	}
}

func WhatsAppLogin() (string, int, error) {
	client, err := currentClient()
	if err != nil {
		return "", 0, err
	}

	client.Disconnect()

	if client.Store.ID == nil {
		ctx, cancel := context.WithTimeout(context.Background(), qrChannelWaitTimeout)
		defer cancel()

		qrChanGenerate, err := client.GetQRChannel(ctx)
		if err != nil {
			return "", 0, err
		}

		err = client.Connect()
		if err != nil {
			return "", 0, err
		}

		qrImage, qrTimeout, paired, err := WhatsAppGenerateQR(ctx, qrChanGenerate)
		if err != nil {
			return "", 0, err
		}
		if paired {
			return "WhatsApp Client is already paired", 0, nil
		}

		return "data:image/png;base64," + qrImage, qrTimeout, nil
	}

	err = WhatsAppReconnect()
	if err != nil {
		return "", 0, err
	}

	return "WhatsApp Client is Reconnected", 0, nil
}

func WhatsAppLoginPair(phone string) (string, int, error) {
	client, err := currentClient()
	if err != nil {
		return "", 0, err
	}

	client.Disconnect()

	if client.Store.ID == nil {
		ctx, cancel := context.WithTimeout(context.Background(), pairPhoneRequestTimeout)
		defer cancel()

		err = client.Connect()
		if err != nil {
			return "", 0, err
		}

		code, err := client.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome ("+runtime.GOOS+")")
		if err != nil {
			return "", 0, err
		}

		return code, 160, nil
	}

	err = WhatsAppReconnect()
	if err != nil {
		return "", 0, err
	}

	return "WhatsApp Client is Reconnected", 0, nil
}

func WhatsAppReconnect() error {
	client, err := currentClient()
	if err != nil {
		return err
	}

	client.Disconnect()

	if client.Store.ID != nil {
		err = client.Connect()
		if err != nil {
			return err
		}

		return nil
	}

	return errors.New("WhatsApp Client Store ID is Empty, Please Re-Login and Scan QR Code Again")
}

func WhatsAppLogout() error {
	client, err := currentClient()
	if err != nil {
		return err
	}

	if client.Store.ID != nil {
		WhatsAppPresence(context.Background(), false)

		logoutCtx, logoutCancel := context.WithTimeout(context.Background(), logoutRequestTimeout)
		defer logoutCancel()

		err = client.Logout(logoutCtx)
		if err != nil {
			client.Disconnect()
			storeCtx, storeCancel := context.WithTimeout(context.Background(), storeCleanupTimeout)
			defer storeCancel()
			err = client.Store.Delete(storeCtx)
			if err != nil {
				return err
			}
		}

		setClient(nil)

		return nil
	}

	return errors.New("WhatsApp Client Store ID is Empty, Please Re-Login and Scan QR Code Again")
}

func WhatsAppDisconnect() {
	client := getClient()
	if client != nil {
		client.Disconnect()
	}
}

func WhatsAppIsClientOK() error {
	client, err := currentClient()
	if err != nil {
		return err
	}

	if !client.IsConnected() {
		return errors.New("WhatsApp Client is not Connected")
	}

	if !client.IsLoggedIn() {
		return errors.New("WhatsApp Client is not Logged In")
	}

	return nil
}

func WhatsAppComposeJID(id string) types.JID {
	if parsed, err := types.ParseJID(WhatsAppDecomposeJID(id)); err == nil {
		return parsed
	}

	id = WhatsAppDecomposeJID(id)
	if strings.ContainsRune(id, '-') || len(id) >= 18 {
		return types.NewJID(id, types.GroupServer)
	}
	return types.NewJID(id, types.DefaultUserServer)
}

func WhatsAppDecomposeJID(id string) string {
	if strings.ContainsRune(id, '@') {
		buffers := strings.Split(id, "@")
		id = buffers[0]
	}

	if len(id) > 0 && id[0] == '+' {
		id = id[1:]
	}

	return strings.TrimSpace(id)
}

func WhatsAppPresence(ctx context.Context, isAvailable bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := currentClient()
	if err != nil {
		return
	}
	if isAvailable {
		_ = client.SendPresence(ctx, types.PresenceAvailable)
	} else {
		_ = client.SendPresence(ctx, types.PresenceUnavailable)
	}
}

func WhatsAppComposeStatus(ctx context.Context, rjid types.JID, isComposing bool, isAudio bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	var typeCompose types.ChatPresence
	if isComposing {
		typeCompose = types.ChatPresenceComposing
	} else {
		typeCompose = types.ChatPresencePaused
	}

	var typeComposeMedia types.ChatPresenceMedia
	if isAudio {
		typeComposeMedia = types.ChatPresenceMediaAudio
	} else {
		typeComposeMedia = types.ChatPresenceMediaText
	}

	client, err := currentClient()
	if err != nil {
		return
	}
	_ = client.SendChatPresence(ctx, rjid, typeCompose, typeComposeMedia)
}

func WhatsAppSendText(ctx context.Context, rjid types.JID, message string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := currentClient()
	if err != nil {
		return "", err
	}
	if err = WhatsAppIsClientOK(); err != nil {
		return "", err
	}
	msgExtra := whatsmeow.SendRequestExtra{ID: client.GenerateMessageID()}
	msgContent := &waE2E.Message{
		Conversation: proto.String(message),
	}
	_, err = client.SendMessage(ctx, rjid, msgContent, msgExtra)
	if err != nil {
		return "", err
	}
	return msgExtra.ID, nil
}

// WhatsAppMessageReact reacts to a message the bot received. The emoji must be
// a single grapheme cluster containing an emoji.
func WhatsAppMessageReact(ctx context.Context, chat types.JID, sender types.JID, msgid string, emoji string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := currentClient()
	if err != nil {
		return err
	}
	if err = WhatsAppIsClientOK(); err != nil {
		return err
	}
	if !gomoji.ContainsEmoji(emoji) && uniseg.GraphemeClusterCount(emoji) != 1 {
		return errors.New("WhatsApp Message React Emoji Must Be Contain Only 1 Emoji Character")
	}
	key := &waCommon.MessageKey{
		FromMe:    proto.Bool(false),
		ID:        proto.String(msgid),
		RemoteJID: proto.String(chat.String()),
	}
	if chat.Server == types.GroupServer {
		key.Participant = proto.String(sender.String())
	}
	msgReact := &waE2E.Message{
		ReactionMessage: &waE2E.ReactionMessage{
			Key:               key,
			Text:              proto.String(emoji),
			SenderTimestampMS: proto.Int64(time.Now().UnixMilli()),
		},
	}
	_, err = client.SendMessage(ctx, chat, msgReact)
	return err
}

// WhatsAppDownloadImage materializes the full image bytes of an inbound image
// message, downscaled to BOT_IMAGE_MAX_WIDTH when wider.
func WhatsAppDownloadImage(ctx context.Context, img *waE2E.ImageMessage) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := currentClient()
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New("WhatsApp Image Message is Empty")
	}

	imageBytes, err := client.Download(ctx, img)
	if err != nil {
		return nil, err
	}

	return downscaleImage(imageBytes)
}

func downscaleImage(imageBytes []byte) ([]byte, error) {
	if imageMaxWidth <= 0 {
		return imageBytes, nil
	}

	decoded, err := imgconv.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		// Not an image format imgconv understands, pass through untouched.
		return imageBytes, nil
	}
	if decoded.Bounds().Dx() <= imageMaxWidth {
		return imageBytes, nil
	}

	encoded := new(bytes.Buffer)
	err = imgconv.Write(encoded,
		imgconv.Resize(decoded, &imgconv.ResizeOption{Width: imageMaxWidth}),
		&imgconv.FormatOption{Format: imgconv.JPEG})
	if err != nil {
		return nil, errors.New("Error While Encoding Resize Image Stream")
	}

	return encoded.Bytes(), nil
}
