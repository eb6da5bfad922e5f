package instance

import "os"

const fallbackID = "local"

// GetID identifies the running process in logs. Platform dyno names win over
// WORKER_ID, which wins over the hostname.
func GetID() string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
