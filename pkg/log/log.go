package log

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func init() {
	logger.Formatter = &logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
		DisableColors:   false,
		ForceColors:     true,
	}
}

// Print returns a request-scoped entry when called with a fiber context,
// or a bare entry for background work.
func Print(c *fiber.Ctx) *logrus.Entry {
	if c == nil {
		return logger.WithFields(logrus.Fields{})
	}

	remoteIP := c.IP()
	if v := c.Locals("remote_ip"); v != nil {
		if ip, ok := v.(string); ok && ip != "" {
			remoteIP = ip
		}
	}
	return logger.WithFields(logrus.Fields{
		"remote_ip": remoteIP,
		"method":    c.Method(),
		"uri":       c.OriginalURL(),
	})
}

// BotOp scopes an entry to one dispatch cycle.
func BotOp(sender string, op string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"sender": sender,
		"op":     op,
	})
}

// SessionOp scopes an entry to a WhatsApp session operation.
func SessionOp(op string) *logrus.Entry {
	return logger.WithField("op", op)
}

// SysErr scopes an entry to a background subsystem error.
func SysErr(tag string, err error) *logrus.Entry {
	return logger.WithField("sys", tag).WithError(err)
}
