package internal

import (
	"context"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/env"
	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/log"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-gemini-bot/pkg/whatsapp"
)

func Routines(cron *cron.Cron) {
	log.Print(nil).Info("Running Routine Tasks")

	if env.GetEnvBoolOrDefault("WHATSAPP_ENABLE_HEALTH_CHECK_CRON", true) {
		_, err := cron.AddFunc("0 */5 * * * *", func() {
			jid := pkgWhatsApp.WhatsAppGetOwnJID()
			if jid == "" {
				return
			}
			maskJID := jid
			if len(jid) >= 4 {
				maskJID = jid[0:len(jid)-4] + "xxxx"
			}
			if err := pkgWhatsApp.WhatsAppIsClientOK(); err != nil {
				log.Print(nil).Warn("Client unhealthy: " + maskJID + " (" + err.Error() + ")")
				if err := pkgWhatsApp.WhatsAppReconnect(); err != nil {
					log.Print(nil).Warn("Client reconnect failed: " + maskJID + " (" + err.Error() + ")")
				} else {
					log.Print(nil).Info("Client reconnected: " + maskJID)
				}
			} else {
				log.Print(nil).Info("Client healthy: " + maskJID)
			}
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add health check cron job")
		}
	} else {
		log.Print(nil).Info("Health check cron disabled; relying on whatsmeow event handlers")
	}

	if env.GetEnvBoolOrDefault("WHATSAPP_ENABLE_WAVERSION_REFRESH_CRON", false) {
		// robfig/cron with seconds field (6 parts). Default: daily at 03:00:00.
		spec := env.GetEnvStringOrDefault("WHATSAPP_WAVERSION_REFRESH_CRON_SPEC", "0 0 3 * * *")
		force := env.GetEnvBoolOrDefault("WHATSAPP_WAVERSION_REFRESH_CRON_FORCE", false)
		_, err := cron.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			status, refreshed, err := pkgWhatsApp.WhatsAppRefreshWAVersion(ctx, force)
			v := status.CurrentVersion
			versionStr := strconv.FormatUint(uint64(v[0]), 10) + "." + strconv.FormatUint(uint64(v[1]), 10) + "." + strconv.FormatUint(uint64(v[2]), 10)
			if err != nil {
				log.Print(nil).WithField("version", versionStr).WithField("force", force).Error("WA Web version refresh failed: " + err.Error())
				return
			}
			log.Print(nil).WithField("version", versionStr).WithField("refreshed", refreshed).WithField("force", force).Info("WA Web version refresh completed")
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add WA Web version refresh cron job")
		} else {
			log.Print(nil).WithField("spec", spec).WithField("force", force).Info("WA Web version refresh cron enabled")
		}
	}

	cron.Start()
}
