package logging

import (
	"log/slog"
	"strings"
)

// redactedValue replaces credential material in log output.
const redactedValue = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"bearer":        {},
	"password":      {},
	"passphrase":    {},
	"secret":        {},
	"token":         {},
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// maskSensitive rewrites attrs whose key names credential material. Empty
// values pass through so absent secrets stay visibly absent.
func maskSensitive(attr slog.Attr) slog.Attr {
	if !isSensitive(attr.Key) {
		return attr
	}
	if strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, redactedValue)
}
