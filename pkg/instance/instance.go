package instance

import "os"

// GetID returns the process instance identifier or a default value.
func GetID() string {
	for _, key := range []string{"ALLERGYSCAN_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
