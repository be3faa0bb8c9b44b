package domain

import "github.com/google/uuid"

// Channel events. The sets are closed: only the types below implement the
// marker interfaces.

type ClientEventType string

const (
	ClientEventWatch   ClientEventType = "watch"
	ClientEventUnwatch ClientEventType = "unwatch"
	ClientEventSend    ClientEventType = "send"
)

type ClientEvent interface {
	ClientEventType() ClientEventType
	isClientEvent()
}

type WatchEvent struct {
	RoomID string `json:"room_id"`
}

type UnwatchEvent struct {
	RoomID string `json:"room_id"`
}

type SendEvent struct {
	RoomID      string          `json:"room_id"`
	Text        string          `json:"text,omitempty"`
	File        *FileAttachment `json:"file,omitempty"`
	MessageType string          `json:"message_type,omitempty"`
	ReplyTo     *uuid.UUID      `json:"reply_to,omitempty"`
	Mentions    []Mention       `json:"mentions,omitempty"`
	ClientRef   string          `json:"client_ref,omitempty"`
}

func (WatchEvent) ClientEventType() ClientEventType   { return ClientEventWatch }
func (UnwatchEvent) ClientEventType() ClientEventType { return ClientEventUnwatch }
func (SendEvent) ClientEventType() ClientEventType    { return ClientEventSend }

func (WatchEvent) isClientEvent()   {}
func (UnwatchEvent) isClientEvent() {}
func (SendEvent) isClientEvent()    {}

func (e SendEvent) Draft() MessageDraft {
	return MessageDraft{
		Text:     e.Text,
		File:     e.File,
		Type:     e.MessageType,
		ReplyTo:  e.ReplyTo,
		Mentions: e.Mentions,
	}
}

type ServerEventType string

const (
	ServerEventMessage        ServerEventType = "message"
	ServerEventMessageUpdated ServerEventType = "message-updated"
	ServerEventPresenceJoined ServerEventType = "presence-joined"
	ServerEventPresenceLeft   ServerEventType = "presence-left"
	ServerEventWatching       ServerEventType = "watching"
	ServerEventError          ServerEventType = "error"
)

type ServerEvent interface {
	ServerEventType() ServerEventType
	isServerEvent()
}

type MessageEvent struct {
	Message Message `json:"message"`
}

type MessageUpdatedEvent struct {
	Message Message `json:"message"`
}

type PresenceJoinedEvent struct {
	RoomID   string   `json:"room_id"`
	Identity Identity `json:"identity"`
}

type PresenceLeftEvent struct {
	RoomID   string   `json:"room_id"`
	Identity Identity `json:"identity"`
}

// WatchingEvent acknowledges a watch and lists who is currently present.
type WatchingEvent struct {
	RoomID string     `json:"room_id"`
	Online []Identity `json:"online"`
}

type ErrorEvent struct {
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
	RoomID    string `json:"room_id,omitempty"`
	ClientRef string `json:"client_ref,omitempty"`
}

func (MessageEvent) ServerEventType() ServerEventType        { return ServerEventMessage }
func (MessageUpdatedEvent) ServerEventType() ServerEventType { return ServerEventMessageUpdated }
func (PresenceJoinedEvent) ServerEventType() ServerEventType { return ServerEventPresenceJoined }
func (PresenceLeftEvent) ServerEventType() ServerEventType   { return ServerEventPresenceLeft }
func (WatchingEvent) ServerEventType() ServerEventType       { return ServerEventWatching }
func (ErrorEvent) ServerEventType() ServerEventType          { return ServerEventError }

func (MessageEvent) isServerEvent()        {}
func (MessageUpdatedEvent) isServerEvent() {}
func (PresenceJoinedEvent) isServerEvent() {}
func (PresenceLeftEvent) isServerEvent()   {}
func (WatchingEvent) isServerEvent()       {}
func (ErrorEvent) isServerEvent()          {}
