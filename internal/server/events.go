package server

import (
	"time"

	"github.com/tdnguyen/go-deliveryhub/internal/types"
)

// ClientEvent is an inbound event from a connection. Exactly one of
// the payload fields is set; Id is an optional client-chosen
// correlation id echoed on responses.
type ClientEvent struct {
	Id               int               `json:"id,omitempty"`
	Authenticate     *Authenticate     `json:"authenticate,omitempty"`
	JoinOrder        *JoinOrder        `json:"join_order,omitempty"`
	SendMessage      *SendMessage      `json:"send_message,omitempty"`
	UpdateLocation   *UpdateLocation   `json:"update_location,omitempty"`
	MarkMessagesRead *MarkMessagesRead `json:"mark_messages_read,omitempty"`
}

type Authenticate struct {
	UserId   string         `json:"user_id"`
	UserType types.UserKind `json:"user_type"`
	Token    string         `json:"token,omitempty"`
}

type JoinOrder struct {
	OrderId string `json:"order_id"`
}

type SendMessage struct {
	OrderId string            `json:"order_id"`
	Body    string            `json:"body"`
	Kind    types.MessageKind `json:"kind,omitempty"`
}

type UpdateLocation struct {
	OrderId   string   `json:"order_id"`
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
	Address   string   `json:"address,omitempty"`
	Accuracy  float64  `json:"accuracy,omitempty"`
	Speed     float64  `json:"speed,omitempty"`
	Heading   float64  `json:"heading,omitempty"`
}

type MarkMessagesRead struct {
	OrderId    string   `json:"order_id"`
	MessageIds []string `json:"message_ids"`
}

// ServerEvent is an outbound event. Exactly one payload field is set.
type ServerEvent struct {
	Id                   int                   `json:"id,omitempty"`
	Timestamp            time.Time             `json:"timestamp"`
	Authenticated        *Authenticated        `json:"authenticated,omitempty"`
	AuthenticationFailed *AuthenticationFailed `json:"authentication_failed,omitempty"`
	JoinedOrder          *JoinedOrder          `json:"joined_order,omitempty"`
	ChatHistory          *ChatHistory          `json:"chat_history,omitempty"`
	NewMessage           *NewMessage           `json:"new_message,omitempty"`
	LocationUpdate       *LocationUpdate       `json:"location_update,omitempty"`
	MessagesMarkedRead   *MessagesMarkedRead   `json:"messages_marked_read,omitempty"`
	Error                *ErrorEvent           `json:"error,omitempty"`
}

type Authenticated struct {
	UserId   string         `json:"user_id"`
	UserType types.UserKind `json:"user_type"`
}

type AuthenticationFailed struct {
	Reason string `json:"reason"`
}

type JoinedOrder struct {
	OrderId string `json:"order_id"`
}

type ChatHistory struct {
	OrderId  string              `json:"order_id"`
	Messages []types.ChatMessage `json:"messages"`
}

type NewMessage struct {
	Message types.ChatMessage `json:"message"`
}

type LocationUpdate struct {
	ShipperId   string         `json:"shipper_id"`
	Coordinates types.GeoPoint `json:"coordinates"`
	Address     string         `json:"address,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Speed       float64        `json:"speed"`
	Heading     float64        `json:"heading"`
}

type MessagesMarkedRead struct {
	OrderId    string   `json:"order_id"`
	MessageIds []string `json:"message_ids"`
}

// Error codes reported on the error event.
const (
	CodeValidation   = "validation_error"
	CodeAuthRequired = "authentication_required"
	CodeAuthDenied   = "authorization_denied"
	CodeNotFound     = "not_found"
	CodePersistence  = "persistence_failure"
	CodeInternal     = "internal_error"
)

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newServerEvent(id int) *ServerEvent {
	return &ServerEvent{Id: id, Timestamp: Now()}
}

// NewOutboundEvent returns an empty timestamped event for callers on
// the server-initiated path; the caller fills in exactly one payload
// field before handing it to the broadcaster.
func NewOutboundEvent() *ServerEvent {
	return newServerEvent(0)
}

func errEvent(id int, code, message string) *ServerEvent {
	ev := newServerEvent(id)
	ev.Error = &ErrorEvent{Code: code, Message: message}
	return ev
}

func ErrValidation(id int, message string) *ServerEvent {
	return errEvent(id, CodeValidation, message)
}

func ErrAuthenticationRequired(id int) *ServerEvent {
	return errEvent(id, CodeAuthRequired, "not authenticated")
}

func ErrAuthorizationDenied(id int, message string) *ServerEvent {
	return errEvent(id, CodeAuthDenied, message)
}

func ErrNotFound(id int, message string) *ServerEvent {
	return errEvent(id, CodeNotFound, message)
}

func ErrPersistence(id int, message string) *ServerEvent {
	return errEvent(id, CodePersistence, message)
}

func ErrInternal(id int) *ServerEvent {
	return errEvent(id, CodeInternal, "internal error")
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
