package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"golang.org/x/sync/singleflight"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/env"
)

type WAVersionRefreshStatus struct {
	CurrentVersion store.WAVersionContainer `json:"current_version"`
	LastRefreshed  *time.Time               `json:"last_refreshed,omitempty"`
	LastError      string                   `json:"last_error,omitempty"`
}

var (
	waVersionRefreshGroup singleflight.Group

	waVersionRefreshMu       sync.RWMutex
	waVersionLastRefreshedAt *time.Time
	waVersionLastError       string
)

func getWAVersionRefreshMinInterval() time.Duration {
	d := env.GetEnvDurationOrDefault("WHATSAPP_WAVERSION_REFRESH_MIN_INTERVAL", 10*time.Minute)
	if d < 0 {
		return 10 * time.Minute
	}
	return d
}

func WhatsAppGetWAVersionRefreshStatus() WAVersionRefreshStatus {
	waVersionRefreshMu.RLock()
	defer waVersionRefreshMu.RUnlock()

	current := store.GetWAVersion()
	var last *time.Time
	if waVersionLastRefreshedAt != nil {
		t := *waVersionLastRefreshedAt
		last = &t
	}

	return WAVersionRefreshStatus{
		CurrentVersion: current,
		LastRefreshed:  last,
		LastError:      waVersionLastError,
	}
}

// WhatsAppRefreshWAVersion fetches the latest WhatsApp Web version and applies it globally via store.SetWAVersion.
// If force=false, it will be throttled by WHATSAPP_WAVERSION_REFRESH_MIN_INTERVAL (default 10m).
func WhatsAppRefreshWAVersion(ctx context.Context, force bool) (WAVersionRefreshStatus, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	minInterval := getWAVersionRefreshMinInterval()
	if !force && minInterval > 0 {
		waVersionRefreshMu.RLock()
		last := waVersionLastRefreshedAt
		waVersionRefreshMu.RUnlock()
		if last != nil && time.Since(*last) < minInterval {
			return WhatsAppGetWAVersionRefreshStatus(), false, nil
		}
	}

	recordRefresh := func(refreshErr error) {
		waVersionRefreshMu.Lock()
		now := time.Now()
		waVersionLastRefreshedAt = &now
		if refreshErr != nil {
			waVersionLastError = refreshErr.Error()
		} else {
			waVersionLastError = ""
		}
		waVersionRefreshMu.Unlock()
	}

	_, err, _ := waVersionRefreshGroup.Do("refresh", func() (interface{}, error) {
		httpClient := &http.Client{Timeout: 15 * time.Second}
		latest, err := whatsmeow.GetLatestVersion(ctx, httpClient)
		if err != nil {
			recordRefresh(err)
			return nil, err
		}
		if latest == nil {
			err := errors.New("latest WhatsApp Web version is nil")
			recordRefresh(err)
			return nil, err
		}

		store.SetWAVersion(*latest)
		recordRefresh(nil)

		return store.GetWAVersion(), nil
	})
	if err != nil {
		return WhatsAppGetWAVersionRefreshStatus(), true, err
	}

	return WhatsAppGetWAVersionRefreshStatus(), true, nil
}
