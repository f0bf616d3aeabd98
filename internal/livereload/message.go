package livereload

import (
	"encoding/json"
	"fmt"
)

// CommandRefresh asks the browser to reload the asset at Path.
const CommandRefresh = "refresh"

// Message is a change notification sent to every browser.
type Message struct {
	Command      string `json:"command"`
	Path         string `json:"path"`
	ApplyJSLive  bool   `json:"apply_js_live"`
	ApplyCSSLive bool   `json:"apply_css_live"`
}

// NewRefresh builds a refresh message that applies scripts and
// stylesheets live.
func NewRefresh(path string) Message {
	return Message{
		Command:      CommandRefresh,
		Path:         path,
		ApplyJSLive:  true,
		ApplyCSSLive: true,
	}
}

// Encode serializes the message as a JSON text frame.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", m.Command, err)
	}

	return data, nil
}
