package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/tdnguyen/go-deliveryhub/internal/database"
	"github.com/tdnguyen/go-deliveryhub/internal/server"
	"github.com/tdnguyen/go-deliveryhub/internal/types"
)

type MarkReadRequest struct {
	MessageIds []string `json:"message_ids"`
}

type SystemMessageRequest struct {
	OrderId string `json:"order_id"`
	Body    string `json:"body"`
}

type UpdateLocationRequest struct {
	OrderId   string   `json:"order_id"`
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
	Address   string   `json:"address,omitempty"`
	Accuracy  float64  `json:"accuracy,omitempty"`
	Speed     float64  `json:"speed,omitempty"`
	Heading   float64  `json:"heading,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type ChatHistoryResponse struct {
	Messages   []types.ChatMessage `json:"messages"`
	Pagination Pagination          `json:"pagination"`
}

func (a *DeliveryApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Printf("json encode: %v", err)
	}
}

// caller loads the authenticated account for the request, writing the
// error response itself when that fails.
func (a *DeliveryApp) caller(w http.ResponseWriter, r *http.Request) (database.Account, bool) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return database.Account{}, false
	}

	account, err := a.repo.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewUnauthorizedError()
		} else {
			errResp = NewInternalServerError(err)
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return database.Account{}, false
	}

	return account, true
}

func orderParticipant(order database.Order, account database.Account) bool {
	if account.Kind == string(types.KindAdmin) {
		return true
	}

	return order.CustomerId == account.Id ||
		(order.ShipperId.Valid && order.ShipperId.String == account.Id)
}

func (a *DeliveryApp) getChatHistory(w http.ResponseWriter, r *http.Request) {
	account, ok := a.caller(w, r)
	if !ok {
		return
	}

	orderId := r.PathValue("orderId")
	order, err := a.repo.GetOrderById(orderId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !orderParticipant(order, account) {
		errResp := NewForbiddenError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	page := intQueryParam(r, "page", 1)
	limit := intQueryParam(r, "limit", 50)

	messages, err := a.repo.GetMessages(order.Id, page, limit)
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	total, err := a.repo.CountMessages(order.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// Messages come back newest first; present them chronologically.
	history := make([]types.ChatMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		history = append(history, chatMessage(messages[i]))
	}

	a.writeJson(w, http.StatusOK, ChatHistoryResponse{
		Messages: history,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	})
}

func (a *DeliveryApp) getUnreadCount(w http.ResponseWriter, r *http.Request) {
	account, ok := a.caller(w, r)
	if !ok {
		return
	}

	count, err := a.repo.CountUnreadMessages(account.Id, account.Kind)
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]int{"unread_count": count})
}

func (a *DeliveryApp) markMessagesRead(w http.ResponseWriter, r *http.Request) {
	account, ok := a.caller(w, r)
	if !ok {
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.MessageIds) == 0 {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var updated []string
	for _, messageId := range req.MessageIds {
		applied, err := a.repo.AppendMessageReader(messageId, database.MessageRead{
			ReaderId:   account.Id,
			ReaderType: account.Kind,
			ReadAt:     server.Now(),
		})
		if err != nil {
			errResp := NewInternalServerError(err)
			a.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if applied {
			updated = append(updated, messageId)
		}
	}

	a.writeJson(w, http.StatusOK, map[string]any{
		"updated_ids":    updated,
		"modified_count": len(updated),
	})
}

// sendSystemMessage persists an admin-originated system message and
// pushes it into the order's room through the broadcaster, outside
// the live-connection path.
func (a *DeliveryApp) sendSystemMessage(w http.ResponseWriter, r *http.Request) {
	account, ok := a.caller(w, r)
	if !ok {
		return
	}

	if account.Kind != string(types.KindAdmin) {
		errResp := NewForbiddenError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SystemMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderId == "" || req.Body == "" {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := a.repo.GetOrderById(req.OrderId); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	saved, err := a.repo.CreateMessage(database.CreateMessageParams{
		OrderId:    req.OrderId,
		SenderType: string(types.KindAdmin),
		Body:       req.Body,
		Kind:       string(types.MessageSystem),
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ev := server.NewOutboundEvent()
	ev.NewMessage = &server.NewMessage{Message: chatMessage(saved)}
	a.broadcaster.SendToOrder(req.OrderId, ev)

	a.writeJson(w, http.StatusCreated, chatMessage(saved))
}

func (a *DeliveryApp) getCurrentLocation(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.caller(w, r); !ok {
		return
	}

	orderId := r.PathValue("orderId")
	order, err := a.repo.GetOrderById(orderId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !order.ShipperId.Valid {
		errResp := NewNotFoundError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	latest, err := a.repo.GetLatestLocation(order.Id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusOK, locationPing(latest))
}

func (a *DeliveryApp) getLocationHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.caller(w, r); !ok {
		return
	}

	orderId := r.PathValue("orderId")
	if _, err := a.repo.GetOrderById(orderId); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	limit := intQueryParam(r, "limit", 100)
	locations, err := a.repo.GetLocationHistory(orderId, limit)
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	history := make([]types.LocationPing, 0, len(locations))
	for _, loc := range locations {
		history = append(history, locationPing(loc))
	}

	a.writeJson(w, http.StatusOK, map[string]any{"location_history": history})
}

// updateLocation is the REST fallback for shippers whose websocket
// connection is unavailable. It applies the same ownership check and
// write-then-notify ordering as the connection-driven path.
func (a *DeliveryApp) updateLocation(w http.ResponseWriter, r *http.Request) {
	account, ok := a.caller(w, r)
	if !ok {
		return
	}

	if account.Kind != string(types.KindShipper) {
		errResp := NewForbiddenError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.OrderId == "" || req.Longitude == nil || req.Latitude == nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	order, err := a.repo.GetOrderById(req.OrderId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !order.ShipperId.Valid || order.ShipperId.String != account.Id {
		errResp := NewForbiddenError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	saved, err := a.repo.CreateLocation(database.CreateLocationParams{
		ShipperId: account.Id,
		OrderId:   req.OrderId,
		Longitude: *req.Longitude,
		Latitude:  *req.Latitude,
		Address:   req.Address,
		Accuracy:  req.Accuracy,
		Speed:     req.Speed,
		Heading:   req.Heading,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ev := server.NewOutboundEvent()
	ev.LocationUpdate = &server.LocationUpdate{
		ShipperId:   saved.ShipperId,
		Coordinates: types.GeoPoint{Longitude: saved.Longitude, Latitude: saved.Latitude},
		Address:     saved.Address,
		Timestamp:   saved.Timestamp,
		Speed:       saved.Speed,
		Heading:     saved.Heading,
	}
	a.broadcaster.SendToOrder(req.OrderId, ev)

	a.writeJson(w, http.StatusOK, map[string]any{"location": locationPing(saved)})
}

func (a *DeliveryApp) stopTracking(w http.ResponseWriter, r *http.Request) {
	account, ok := a.caller(w, r)
	if !ok {
		return
	}

	orderId := r.PathValue("orderId")
	order, err := a.repo.GetOrderById(orderId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !order.ShipperId.Valid || order.ShipperId.String != account.Id {
		errResp := NewForbiddenError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	modified, err := a.repo.DeactivateLocations(order.Id, account.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{
		"success":        true,
		"modified_count": modified,
	})
}

// serveWs upgrades the request and hands the socket to the hub. The
// connection identifies itself afterwards with an in-band
// authenticate event.
func (a *DeliveryApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(a.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(conn, a.hub, a.log)
	a.hub.RegisterClient(client)
	go client.Write()
	go client.Read()
}

func intQueryParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}

	return v
}

func chatMessage(m database.Message) types.ChatMessage {
	msg := types.ChatMessage{
		Id:         m.Id,
		OrderId:    m.OrderId,
		SenderType: types.UserKind(m.SenderType),
		Body:       m.Body,
		Kind:       types.MessageKind(m.Kind),
		CreatedAt:  m.CreatedAt,
	}

	if m.SenderId.Valid {
		msg.SenderId = m.SenderId.String
	}

	for _, read := range m.ReadBy {
		msg.ReadBy = append(msg.ReadBy, types.ReadReceipt{
			ReaderId:   read.ReaderId,
			ReaderType: types.UserKind(read.ReaderType),
			ReadAt:     read.ReadAt,
		})
	}

	return msg
}

func locationPing(loc database.Location) types.LocationPing {
	return types.LocationPing{
		Id:        loc.Id,
		ShipperId: loc.ShipperId,
		OrderId:   loc.OrderId,
		Coordinates: types.GeoPoint{
			Longitude: loc.Longitude,
			Latitude:  loc.Latitude,
		},
		Address:   loc.Address,
		Accuracy:  loc.Accuracy,
		Speed:     loc.Speed,
		Heading:   loc.Heading,
		Timestamp: loc.Timestamp,
		IsActive:  loc.IsActive,
	}
}
