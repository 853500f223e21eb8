package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/ovoronin/pairline/internal/domain"
)

// Event is one inbound user interaction delivered by the platform gateway:
// either a message carrying a payload or a button callback.
type Event struct {
	SenderID    int64
	Handle      string
	DisplayName string

	// MessageID is the platform id of the inbound message, when present.
	MessageID int64

	// Payload is set for message events.
	Payload domain.Payload

	// Callback is the button callback data, non-empty for callback events.
	Callback string
}

// IsCallback reports whether the event is a button press.
func (e *Event) IsCallback() bool {
	return e.Callback != ""
}

// rawEvent is the raw JSON structure from the gateway stream.
type rawEvent struct {
	Type   string `json:"type"`
	Sender struct {
		ID          int64  `json:"id"`
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
	} `json:"sender"`
	Message  *rawMessage  `json:"message,omitempty"`
	Callback *rawCallback `json:"callback,omitempty"`
}

// rawMessage is the raw message body from the gateway stream.
type rawMessage struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	Text    string `json:"text,omitempty"`
	FileID  string `json:"file_id,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// rawCallback is a raw button press from the gateway stream.
type rawCallback struct {
	MessageID int64  `json:"message_id"`
	Data      string `json:"data"`
}

// payloadKinds maps wire kind names to domain kinds. Anything else is
// KindUnsupported rather than an error: unsupported content still reaches
// the handler so the user gets told.
var payloadKinds = map[string]domain.Kind{
	"text":       domain.KindText,
	"image":      domain.KindImage,
	"audio":      domain.KindAudio,
	"voice":      domain.KindVoice,
	"video":      domain.KindVideo,
	"video_note": domain.KindVideoNote,
	"document":   domain.KindDocument,
	"sticker":    domain.KindSticker,
}

func parseEvent(data []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if raw.Sender.ID == 0 {
		return nil, fmt.Errorf("event has no sender id")
	}

	event := &Event{
		SenderID:    raw.Sender.ID,
		Handle:      raw.Sender.Username,
		DisplayName: raw.Sender.DisplayName,
	}

	switch raw.Type {
	case "message":
		if raw.Message == nil {
			return nil, fmt.Errorf("message event without message body")
		}
		kind, ok := payloadKinds[raw.Message.Kind]
		if !ok {
			kind = domain.KindUnsupported
		}
		event.MessageID = raw.Message.ID
		event.Payload = domain.Payload{
			Kind:    kind,
			Text:    raw.Message.Text,
			FileID:  raw.Message.FileID,
			Caption: raw.Message.Caption,
		}
	case "callback":
		if raw.Callback == nil {
			return nil, fmt.Errorf("callback event without callback body")
		}
		event.MessageID = raw.Callback.MessageID
		event.Callback = raw.Callback.Data
	default:
		return nil, fmt.Errorf("unknown event type %q", raw.Type)
	}

	return event, nil
}
