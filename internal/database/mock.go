package database

import (
	"github.com/stretchr/testify/mock"
)

type MockDeliveryRepository struct {
	mock.Mock
}

func (m *MockDeliveryRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDeliveryRepository) GetOrderById(orderId string) (Order, error) {
	args := m.Called(orderId)
	return args.Get(0).(Order), args.Error(1)
}

func (m *MockDeliveryRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockDeliveryRepository) GetRecentMessages(orderId string, limit int) ([]Message, error) {
	args := m.Called(orderId, limit)
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockDeliveryRepository) GetMessages(orderId string, page, limit int) ([]Message, error) {
	args := m.Called(orderId, page, limit)
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockDeliveryRepository) CountMessages(orderId string) (int, error) {
	args := m.Called(orderId)
	return args.Int(0), args.Error(1)
}

func (m *MockDeliveryRepository) AppendMessageReader(messageId string, read MessageRead) (bool, error) {
	args := m.Called(messageId, read)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeliveryRepository) CountUnreadMessages(userId, userKind string) (int, error) {
	args := m.Called(userId, userKind)
	return args.Int(0), args.Error(1)
}

func (m *MockDeliveryRepository) CreateLocation(params CreateLocationParams) (Location, error) {
	args := m.Called(params)
	return args.Get(0).(Location), args.Error(1)
}

func (m *MockDeliveryRepository) GetLatestLocation(orderId string) (Location, error) {
	args := m.Called(orderId)
	return args.Get(0).(Location), args.Error(1)
}

func (m *MockDeliveryRepository) GetLocationHistory(orderId string, limit int) ([]Location, error) {
	args := m.Called(orderId, limit)
	return args.Get(0).([]Location), args.Error(1)
}

func (m *MockDeliveryRepository) DeactivateLocations(orderId, shipperId string) (int, error) {
	args := m.Called(orderId, shipperId)
	return args.Int(0), args.Error(1)
}

func (m *MockDeliveryRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}

func (m *MockDeliveryRepository) GetAccountById(accountId string) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}

func (m *MockDeliveryRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
