package env

import (
	"os"
	"strconv"
	"strings"
)

// Prefix namespaces every allergyscan variable.
const Prefix = "ALLERGYSCAN_"

// Get looks up Prefix+key first, then the bare key, then returns fallback.
func Get(key, fallback string) string {
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}

func Bool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(Get(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
