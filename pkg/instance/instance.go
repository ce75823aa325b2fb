package instance

import (
	"os"

	"github.com/angelmondragon/courtside-storefront/pkg/env"
)

// ID names this process for logs and lock ownership. It prefers an explicit
// COURTSIDE_INSTANCE_ID, then the platform dyno name, then the hostname.
func ID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return env.First(host, "COURTSIDE_INSTANCE_ID", "DYNO")
}
