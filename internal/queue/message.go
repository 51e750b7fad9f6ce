package queue

import "encoding/json"

// Message types understood by the worker.
const (
	TypeDocumentProcess = "document.process"
	TypePoliciesRefresh = "policies.refresh"
)

// Message is the payload sent to downstream queue consumers.
type Message struct {
	Type       string `json:"type"`
	DocumentID string `json:"document_id,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	EnqueuedAt string `json:"enqueued_at,omitempty"`
	Version    int    `json:"version,omitempty"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
