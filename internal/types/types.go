package types

import (
	"time"
)

// UserKind identifies the role of a party on the platform.
type UserKind string

const (
	KindCustomer UserKind = "customer"
	KindShipper  UserKind = "shipper"
	KindAdmin    UserKind = "admin"
)

func (k UserKind) Valid() bool {
	switch k {
	case KindCustomer, KindShipper, KindAdmin:
		return true
	}
	return false
}

// Identity is an authenticated party on a connection.
type Identity struct {
	Id   string   `json:"id"`
	Kind UserKind `json:"kind"`
}

type User struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Kind      UserKind  `json:"kind"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type MessageKind string

const (
	MessageText     MessageKind = "text"
	MessageImage    MessageKind = "image"
	MessageLocation MessageKind = "location"
	MessageSystem   MessageKind = "system"
)

func (k MessageKind) Valid() bool {
	switch k {
	case MessageText, MessageImage, MessageLocation, MessageSystem:
		return true
	}
	return false
}

// ReadReceipt records that a single reader has seen a message.
type ReadReceipt struct {
	ReaderId   string    `json:"reader_id"`
	ReaderType UserKind  `json:"reader_type"`
	ReadAt     time.Time `json:"read_at"`
}

// ChatMessage is one message in an order's conversation. SenderId is
// empty only for system messages.
type ChatMessage struct {
	Id         string        `json:"id"`
	OrderId    string        `json:"order_id"`
	SenderId   string        `json:"sender_id,omitempty"`
	SenderType UserKind      `json:"sender_type"`
	Body       string        `json:"body"`
	Kind       MessageKind   `json:"kind"`
	CreatedAt  time.Time     `json:"created_at"`
	ReadBy     []ReadReceipt `json:"read_by,omitempty"`
}

// GeoPoint is a lon/lat pair, longitude first.
type GeoPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// LocationPing is one sample of a shipper's position while carrying
// an order.
type LocationPing struct {
	Id          string    `json:"id"`
	ShipperId   string    `json:"shipper_id"`
	OrderId     string    `json:"order_id"`
	Coordinates GeoPoint  `json:"coordinates"`
	Address     string    `json:"address,omitempty"`
	Accuracy    float64   `json:"accuracy"`
	Speed       float64   `json:"speed"`
	Heading     float64   `json:"heading"`
	Timestamp   time.Time `json:"timestamp"`
	IsActive    bool      `json:"is_active"`
}

// Order is read-only from the hub's perspective; it is consulted to
// authorize room joins and location updates. ShipperId is empty until
// a shipper is assigned.
type Order struct {
	Id          string    `json:"id"`
	OrderNumber string    `json:"order_number"`
	CustomerId  string    `json:"customer_id"`
	ShipperId   string    `json:"shipper_id,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}
