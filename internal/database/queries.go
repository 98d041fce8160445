package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

func (db *PgDeliveryRepository) GetOrderById(orderId string) (Order, error) {
	row := db.conn.QueryRow(
		"SELECT id, order_number, customer_id, shipper_id, status, created_at, updated_at "+
			"FROM orders WHERE id = $1 LIMIT 1",
		orderId,
	)

	var o Order
	err := row.Scan(
		&o.Id,
		&o.OrderNumber,
		&o.CustomerId,
		&o.ShipperId,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)

	return o, err
}

func (db *PgDeliveryRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	var senderId sql.NullString
	if params.SenderId != "" {
		senderId = sql.NullString{String: params.SenderId, Valid: true}
	}

	res := db.conn.QueryRow(
		"INSERT INTO messages (id, order_id, sender_id, sender_type, body, kind, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) "+
			"RETURNING id, order_id, sender_id, sender_type, body, kind, created_at",
		uuid.NewString(),
		params.OrderId,
		senderId,
		params.SenderType,
		params.Body,
		params.Kind,
		time.Now().UTC(),
	)

	var m Message
	err := res.Scan(
		&m.Id,
		&m.OrderId,
		&m.SenderId,
		&m.SenderType,
		&m.Body,
		&m.Kind,
		&m.CreatedAt,
	)

	return m, err
}

// GetRecentMessages returns up to limit messages for an order, newest
// first.
func (db *PgDeliveryRepository) GetRecentMessages(orderId string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	return db.queryMessages(
		"SELECT id, order_id, sender_id, sender_type, body, kind, created_at FROM messages "+
			"WHERE order_id = $1 ORDER BY created_at DESC LIMIT $2",
		orderId,
		limit,
	)
}

// GetMessages returns one page of an order's messages, newest first.
// Pages are 1-based.
func (db *PgDeliveryRepository) GetMessages(orderId string, page, limit int) ([]Message, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	return db.queryMessages(
		"SELECT id, order_id, sender_id, sender_type, body, kind, created_at FROM messages "+
			"WHERE order_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		orderId,
		limit,
		(page-1)*limit,
	)
}

func (db *PgDeliveryRepository) queryMessages(query string, args ...any) ([]Message, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	var ids []string
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Id, &m.OrderId, &m.SenderId, &m.SenderType, &m.Body, &m.Kind, &m.CreatedAt); err != nil {
			return nil, err
		}

		messages = append(messages, m)
		ids = append(ids, m.Id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.attachReads(messages, ids); err != nil {
		return nil, err
	}

	return messages, nil
}

func (db *PgDeliveryRepository) attachReads(messages []Message, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := db.conn.Query(
		"SELECT message_id, reader_id, reader_type, read_at FROM message_reads "+
			"WHERE message_id = ANY($1) ORDER BY read_at",
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("query message reads: %w", err)
	}
	defer rows.Close()

	byMessage := make(map[string][]MessageRead)
	for rows.Next() {
		var r MessageRead
		if err := rows.Scan(&r.MessageId, &r.ReaderId, &r.ReaderType, &r.ReadAt); err != nil {
			return err
		}

		byMessage[r.MessageId] = append(byMessage[r.MessageId], r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range messages {
		messages[i].ReadBy = byMessage[messages[i].Id]
	}

	return nil
}

func (db *PgDeliveryRepository) CountMessages(orderId string) (int, error) {
	row := db.conn.QueryRow("SELECT COUNT(*) FROM messages WHERE order_id = $1", orderId)

	var count int
	err := row.Scan(&count)

	return count, err
}

// AppendMessageReader records a read receipt for a message. It
// returns false without error when the reader has already marked the
// message, making the call idempotent per (message, reader).
func (db *PgDeliveryRepository) AppendMessageReader(messageId string, read MessageRead) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT INTO message_reads (message_id, reader_id, reader_type, read_at) "+
			"VALUES ($1, $2, $3, $4) ON CONFLICT (message_id, reader_id) DO NOTHING",
		messageId,
		read.ReaderId,
		read.ReaderType,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// CountUnreadMessages counts messages on the user's orders that were
// sent by someone else and carry no read receipt from the user.
func (db *PgDeliveryRepository) CountUnreadMessages(userId, userKind string) (int, error) {
	ownerColumn := "customer_id"
	if userKind == "shipper" {
		ownerColumn = "shipper_id"
	}

	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM messages m "+
			"JOIN orders o ON o.id = m.order_id "+
			"WHERE o."+ownerColumn+" = $1 "+
			"AND (m.sender_id IS NULL OR m.sender_id <> $1) "+
			"AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.reader_id = $1)",
		userId,
	)

	var count int
	err := row.Scan(&count)

	return count, err
}

func (db *PgDeliveryRepository) CreateLocation(params CreateLocationParams) (Location, error) {
	res := db.conn.QueryRow(
		"INSERT INTO locations (id, shipper_id, order_id, longitude, latitude, address, accuracy, speed, heading, timestamp, is_active) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE) "+
			"RETURNING id, shipper_id, order_id, longitude, latitude, address, accuracy, speed, heading, timestamp, is_active",
		uuid.NewString(),
		params.ShipperId,
		params.OrderId,
		params.Longitude,
		params.Latitude,
		params.Address,
		params.Accuracy,
		params.Speed,
		params.Heading,
		time.Now().UTC(),
	)

	var loc Location
	err := scanLocation(res, &loc)

	return loc, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner, loc *Location) error {
	return row.Scan(
		&loc.Id,
		&loc.ShipperId,
		&loc.OrderId,
		&loc.Longitude,
		&loc.Latitude,
		&loc.Address,
		&loc.Accuracy,
		&loc.Speed,
		&loc.Heading,
		&loc.Timestamp,
		&loc.IsActive,
	)
}

func (db *PgDeliveryRepository) GetLatestLocation(orderId string) (Location, error) {
	row := db.conn.QueryRow(
		"SELECT id, shipper_id, order_id, longitude, latitude, address, accuracy, speed, heading, timestamp, is_active "+
			"FROM locations WHERE order_id = $1 AND is_active ORDER BY timestamp DESC LIMIT 1",
		orderId,
	)

	var loc Location
	err := scanLocation(row, &loc)

	return loc, err
}

func (db *PgDeliveryRepository) GetLocationHistory(orderId string, limit int) ([]Location, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.Query(
		"SELECT id, shipper_id, order_id, longitude, latitude, address, accuracy, speed, heading, timestamp, is_active "+
			"FROM locations WHERE order_id = $1 AND is_active ORDER BY timestamp DESC LIMIT $2",
		orderId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var loc Location
		if err := scanLocation(rows, &loc); err != nil {
			return nil, err
		}

		locations = append(locations, loc)
	}

	return locations, rows.Err()
}

// DeactivateLocations flips every active ping for the order and
// shipper to inactive and reports how many rows changed.
func (db *PgDeliveryRepository) DeactivateLocations(orderId, shipperId string) (int, error) {
	res, err := db.conn.Exec(
		"UPDATE locations SET is_active = FALSE WHERE order_id = $1 AND shipper_id = $2 AND is_active",
		orderId,
		shipperId,
	)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()

	return int(n), err
}

func (db *PgDeliveryRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	now := time.Now().UTC()
	res := db.conn.QueryRow(
		"INSERT INTO accounts (id, name, email, password_hash, kind, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, name, email, kind, created_at, updated_at",
		uuid.NewString(),
		params.Name,
		params.Email,
		params.PasswordHash,
		params.Kind,
		now,
		now,
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Name,
		&a.Email,
		&a.Kind,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgDeliveryRepository) GetAccountById(accountId string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, email, kind, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Name,
		&a.Email,
		&a.Kind,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgDeliveryRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, email, password_hash, kind, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Name,
		&a.Email,
		&a.PasswordHash,
		&a.Kind,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}
