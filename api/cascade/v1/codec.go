package cascadev1

import (
	"encoding/json"
	"fmt"
)

// Codec marshals cascade.v1 messages as JSON. It registers under the "json"
// name so connect clients and handlers speak application/json.
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("invalid JSON message: %w", err)
	}
	return nil
}
