// Package config loads the MCCACHE_* environment configuration described in
// the wire protocol's configuration table, optionally from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mccache/mccache/pkg/mccache/types"
)

// Config holds every recognised MCCACHE_* setting, post-validation and
// post-default-application.
type Config struct {
	LogFormat      string
	DebugFile      string
	HouseKeepSlots []int
	MTU            int
	TTLSeconds     int
	Posture        types.Posture
	MaxSize        int
	MulticastHops  int
	MulticastGroup string
	MulticastPort  int
}

// defaultHouseKeepSlots is the coarse backoff the housekeeper cycles
// through when MCCACHE_SLOTS is not set.
var defaultHouseKeepSlots = []int{5, 8, 13, 21, 55}

// Default returns a Config with every field at its documented default.
func Default() Config {
	return Config{
		LogFormat:      "",
		DebugFile:      "",
		HouseKeepSlots: append([]int(nil), defaultHouseKeepSlots...),
		MTU:            1472,
		TTLSeconds:     900,
		Posture:        types.Neutral,
		MaxSize:        types.Neutral.DefaultMaxSize(),
		MulticastHops:  1,
		MulticastGroup: "224.0.0.3",
		MulticastPort:  4000,
	}
}

// Load reads MCCACHE_* variables from the environment, optionally after
// loading envPath (a .env file; an error loading it, such as a missing
// file, is ignored). Invalid
// values are reported through warn rather than returned as an error: per
// §7, a configuration error degrades to defaults and startup continues.
// warn may be nil, in which case problems are silently defaulted.
func Load(envPath string, warn func(format string, args ...interface{})) Config {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}

	cfg := Default()

	if v, ok := os.LookupEnv("MCCACHE_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	if v, ok := os.LookupEnv("MCCACHE_DEBUG_FILE"); ok {
		cfg.DebugFile = v
	}
	if v, ok := os.LookupEnv("MCCACHE_SLOTS"); ok {
		if slots, err := parseSlots(v); err != nil {
			warn("invalid MCCACHE_SLOTS %q: %v, using default %v", v, err, defaultHouseKeepSlots)
		} else {
			cfg.HouseKeepSlots = slots
		}
	}
	if v, ok := os.LookupEnv("MCCACHE_MTU"); ok {
		if n, err := strconv.Atoi(v); err != nil {
			warn("invalid MCCACHE_MTU %q: %v, using default %d", v, err, cfg.MTU)
		} else {
			cfg.MTU = n
		}
	}
	if v, ok := os.LookupEnv("MCCACHE_TTL"); ok {
		if n, err := strconv.Atoi(v); err != nil {
			warn("invalid MCCACHE_TTL %q: %v, using default %d", v, err, cfg.TTLSeconds)
		} else {
			cfg.TTLSeconds = n
		}
	}
	// Posture must be resolved before MaxSize, since the posture implies a
	// size default that MCCACHE_MAXSIZE may still override below.
	if v, ok := os.LookupEnv("MCCACHE_LEVEL"); ok {
		if n, err := strconv.Atoi(v); err != nil {
			warn("invalid MCCACHE_LEVEL %q: %v, using default %s", v, err, cfg.Posture)
		} else if p := types.Posture(n); !p.Valid() {
			warn("unrecognised MCCACHE_LEVEL %d, using default %s", n, cfg.Posture)
		} else {
			cfg.Posture = p
			cfg.MaxSize = p.DefaultMaxSize()
		}
	}
	if v, ok := os.LookupEnv("MCCACHE_MAXSIZE"); ok {
		if n, err := strconv.Atoi(v); err != nil {
			warn("invalid MCCACHE_MAXSIZE %q: %v, using default %d", v, err, cfg.MaxSize)
		} else {
			cfg.MaxSize = n
		}
	}
	if v, ok := os.LookupEnv("MCCACHE_MULTICAST_HOPS"); ok {
		if n, err := strconv.Atoi(v); err != nil {
			warn("invalid MCCACHE_MULTICAST_HOPS %q: %v, using default %d", v, err, cfg.MulticastHops)
		} else {
			cfg.MulticastHops = n
		}
	}
	if v, ok := os.LookupEnv("MCCACHE_MULTICAST_IP"); ok {
		group, port, err := parseGroupAddr(v, cfg.MulticastPort)
		if err != nil {
			warn("invalid MCCACHE_MULTICAST_IP %q: %v, defaulting to %s:%d", v, err, cfg.MulticastGroup, cfg.MulticastPort)
		} else {
			cfg.MulticastGroup = group
			cfg.MulticastPort = port
		}
	}

	return cfg
}

func parseSlots(v string) ([]int, error) {
	parts := strings.Split(v, ",")
	slots := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("slot %q: %w", p, err)
		}
		slots = append(slots, n)
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("no slots provided")
	}
	return slots, nil
}

// parseGroupAddr parses "addr" or "addr:port" as the spec requires,
// returning the group and the port to use (defaultPort when none given).
func parseGroupAddr(v string, defaultPort int) (string, int, error) {
	if !strings.Contains(v, ":") {
		return v, defaultPort, nil
	}
	parts := strings.SplitN(v, ":", 2)
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("bad port %q: %w", parts[1], err)
	}
	return parts[0], port, nil
}
