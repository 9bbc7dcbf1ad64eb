package env

import "os"

// Get reads an environment variable, falling back when it is unset or blank.
// Used by packages that must initialize before the full config is loaded.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
