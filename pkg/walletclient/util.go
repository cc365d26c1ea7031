package walletclient

import (
	"encoding/json"
	"fmt"
	"io"
)

// readAll drains and closes in
func readAll(in io.ReadCloser) ([]byte, error) {
	body, err := io.ReadAll(in)
	_ = in.Close()
	if err != nil {
		return nil, fmt.Errorf("io read: %w", err)
	}
	return body, nil
}

// envelopeMessage reads the message of a response body, the raw body if it is not JSON
func envelopeMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Message == "" {
		return string(body)
	}
	return env.Message
}
