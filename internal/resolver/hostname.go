package resolver

import (
	"os"
	"strings"
)

// FallbackHostname is used when no hostname can be determined.
const FallbackHostname = "localhost"

var osHostname = os.Hostname

// DetectHostname checks HOST and HOSTNAME, then the OS-reported hostname,
// and finally falls back to FallbackHostname.
func DetectHostname(lookup LookupFunc) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	for _, key := range []string{"HOST", "HOSTNAME"} {
		if value, ok := lookup(key); ok {
			if value = strings.TrimSpace(value); value != "" {
				return value
			}
		}
	}

	if name, err := osHostname(); err == nil && name != "" {
		return name
	}
	return FallbackHostname
}
