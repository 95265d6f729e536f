package config

import (
	"os"
	"strings"
)

// GetSecret resolves a credential such as PAIRING_SECRET, PAIRING_TOKEN,
// MQTT_PASSWORD or DB_PASSWORD. The variable itself wins; otherwise
// <name>_FILE may point at a file holding the value, which lets the phone
// mount its signing key as a container secret and lets the watch read the
// token written by `bpmctl pairing token > token`. Surrounding whitespace
// in the file is ignored. An unreadable file falls back to defaultValue.
func GetSecret(name, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}

	path := os.Getenv(name + "_FILE")
	if path == "" {
		return defaultValue
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultValue
	}
	return strings.TrimSpace(string(data))
}
