package database

import (
	"database/sql"
	"time"
)

type Account struct {
	Id           string
	Name         string
	Email        string
	PasswordHash string
	Kind         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Order struct {
	Id          string
	OrderNumber string
	CustomerId  string
	ShipperId   sql.NullString
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Message struct {
	Id         string
	OrderId    string
	SenderId   sql.NullString
	SenderType string
	Body       string
	Kind       string
	CreatedAt  time.Time
	ReadBy     []MessageRead
}

type MessageRead struct {
	MessageId  string
	ReaderId   string
	ReaderType string
	ReadAt     time.Time
}

type Location struct {
	Id        string
	ShipperId string
	OrderId   string
	Longitude float64
	Latitude  float64
	Address   string
	Accuracy  float64
	Speed     float64
	Heading   float64
	Timestamp time.Time
	IsActive  bool
}

type CreateAccountParams struct {
	Name         string
	Email        string
	PasswordHash string
	Kind         string
}

type CreateMessageParams struct {
	OrderId    string
	SenderId   string
	SenderType string
	Body       string
	Kind       string
}

type CreateLocationParams struct {
	ShipperId string
	OrderId   string
	Longitude float64
	Latitude  float64
	Address   string
	Accuracy  float64
	Speed     float64
	Heading   float64
}
