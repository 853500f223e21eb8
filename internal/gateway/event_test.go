package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovoronin/pairline/internal/domain"
)

func TestParseEvent_TextMessage(t *testing.T) {
	data := []byte(`{
		"type": "message",
		"sender": {"id": 42, "username": "alice", "display_name": "Alice"},
		"message": {"id": 7, "kind": "text", "text": "hello"}
	}`)

	event, err := parseEvent(data)
	require.NoError(t, err)

	assert.Equal(t, int64(42), event.SenderID)
	assert.Equal(t, "alice", event.Handle)
	assert.Equal(t, "Alice", event.DisplayName)
	assert.Equal(t, int64(7), event.MessageID)
	assert.False(t, event.IsCallback())
	assert.Equal(t, domain.TextPayload("hello"), event.Payload)
}

func TestParseEvent_MediaMessage(t *testing.T) {
	data := []byte(`{
		"type": "message",
		"sender": {"id": 42, "username": "alice"},
		"message": {"id": 8, "kind": "image", "file_id": "f123", "caption": "sunset"}
	}`)

	event, err := parseEvent(data)
	require.NoError(t, err)

	assert.Equal(t, domain.KindImage, event.Payload.Kind)
	assert.Equal(t, "f123", event.Payload.FileID)
	assert.Equal(t, "sunset", event.Payload.Caption)
}

func TestParseEvent_UnknownKindMapsToUnsupported(t *testing.T) {
	data := []byte(`{
		"type": "message",
		"sender": {"id": 42},
		"message": {"id": 9, "kind": "poll"}
	}`)

	event, err := parseEvent(data)
	require.NoError(t, err)
	assert.Equal(t, domain.KindUnsupported, event.Payload.Kind)
	assert.False(t, event.Payload.Supported())
}

func TestParseEvent_Callback(t *testing.T) {
	data := []byte(`{
		"type": "callback",
		"sender": {"id": 42, "username": "alice"},
		"callback": {"message_id": 11, "data": "chat:99"}
	}`)

	event, err := parseEvent(data)
	require.NoError(t, err)

	assert.True(t, event.IsCallback())
	assert.Equal(t, "chat:99", event.Callback)
	assert.Equal(t, int64(11), event.MessageID)
}

func TestParseEvent_Malformed(t *testing.T) {
	cases := map[string]string{
		"bad json":           `{`,
		"no sender":          `{"type": "message", "message": {"id": 1, "kind": "text"}}`,
		"unknown type":       `{"type": "presence", "sender": {"id": 42}}`,
		"message body gone":  `{"type": "message", "sender": {"id": 42}}`,
		"callback body gone": `{"type": "callback", "sender": {"id": 42}}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseEvent([]byte(data))
			assert.Error(t, err)
		})
	}
}
