package resolver

import (
	"fmt"
	"strings"
)

// Fixed tier labels. The environment and hostname tiers sit between default
// and local.
const (
	TierDefault = "default"
	TierLocal   = "local"
	TierEnv     = "env"
)

// DefaultEnvironment is used when no environment name is configured.
const DefaultEnvironment = "development"

// BuildTiers returns the resolution order
// [default, environment, hostname, local, env]. The hostname tier is omitted
// when hostname is empty. Labels that collide are kept; each tier runs on its
// own.
func BuildTiers(environment, hostname string) ([]string, error) {
	if strings.TrimSpace(environment) == "" {
		return nil, fmt.Errorf("%w: environment must be a non-empty string", ErrInvalidArgument)
	}

	tiers := make([]string, 0, 5)
	tiers = append(tiers, TierDefault, environment)
	if hostname != "" {
		tiers = append(tiers, hostname)
	}
	return append(tiers, TierLocal, TierEnv), nil
}
