// internal/server/request.go
package server

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ProcessQueryRequest is the wire shape accepted by POST /process_query.
type ProcessQueryRequest struct {
	QueryString    string             `json:"query_string"`
	ImgURL         string             `json:"img_url"`
	ElementCenters schemas.ElementMap `json:"element_centers"`
	CurrentLink    string             `json:"current_link"`
	Log            LogEntries         `json:"log"`
}

// ToDecisionRequest maps the wire fields onto the decision input.
func (p ProcessQueryRequest) ToDecisionRequest() schemas.DecisionRequest {
	return schemas.DecisionRequest{
		Goal:          p.QueryString,
		Elements:      p.ElementCenters,
		Log:           []string(p.Log),
		CurrentURL:    p.CurrentLink,
		ScreenshotRef: p.ImgURL,
	}
}

// LogEntries accepts either a JSON array of strings or a single string, which older
// clients send as one pre-joined entry. null and an absent field both stay nil.
type LogEntries []string

func (l *LogEntries) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*l = nil
		return nil
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s == "" {
			*l = LogEntries{}
		} else {
			*l = LogEntries{s}
		}
		return nil
	default:
		var entries []string
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return fmt.Errorf("log must be a string or an array of strings: %w", err)
		}
		if entries == nil {
			entries = []string{}
		}
		*l = entries
		return nil
	}
}

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	ImgURL string `json:"img_url"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
	// Retryable is set when re-sending the same request may succeed.
	Retryable bool `json:"retryable,omitempty"`
}
