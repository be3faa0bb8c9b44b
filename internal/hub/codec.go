package hub

import (
	"bytes"
	"encoding/json"
	"strings"

	"creator_collab/internal/domain"
	apperrors "creator_collab/pkg/errors"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeClientEvent parses one inbound frame into its event variant.
func DecodeClientEvent(data []byte) (domain.ClientEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.WithDetail(apperrors.ErrValidation, "malformed frame: %v", err)
	}

	switch domain.ClientEventType(env.Type) {
	case domain.ClientEventWatch:
		var ev domain.WatchEvent
		if err := decodePayload(env.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, requireRoom(ev.RoomID)
	case domain.ClientEventUnwatch:
		var ev domain.UnwatchEvent
		if err := decodePayload(env.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, requireRoom(ev.RoomID)
	case domain.ClientEventSend:
		var ev domain.SendEvent
		if err := decodePayload(env.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, requireRoom(ev.RoomID)
	case "":
		return nil, apperrors.WithDetail(apperrors.ErrValidation, "event type is required")
	default:
		return nil, apperrors.WithDetail(apperrors.ErrValidation, "unknown event type %q", env.Type)
	}
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return apperrors.WithDetail(apperrors.ErrValidation, "payload is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.WithDetail(apperrors.ErrValidation, "malformed payload: %v", err)
	}
	return nil
}

func requireRoom(roomID string) error {
	if strings.TrimSpace(roomID) == "" {
		return apperrors.WithDetail(apperrors.ErrValidation, "room_id is required")
	}
	return nil
}

// EncodeServerEvent renders an outbound event in the same envelope.
func EncodeServerEvent(ev domain.ServerEvent) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: string(ev.ServerEventType()), Payload: payload})
}
