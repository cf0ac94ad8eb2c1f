package display

import (
	"encoding/json"
	"os"
)

// CompactEnv switches MarshalJSON to single-line output.
const CompactEnv = "DISCOGRAPH_JSON_COMPACT"

// MarshalJSON marshals v indented for reading, or compact when
// DISCOGRAPH_JSON_COMPACT is set (line-oriented tools, log shippers).
func MarshalJSON(v interface{}) ([]byte, error) {
	if os.Getenv(CompactEnv) != "" {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}
