package database

type DeliveryRepository interface {
	Ping() error
	GetOrderById(orderId string) (Order, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetRecentMessages(orderId string, limit int) ([]Message, error)
	GetMessages(orderId string, page, limit int) ([]Message, error)
	CountMessages(orderId string) (int, error)
	AppendMessageReader(messageId string, read MessageRead) (bool, error)
	CountUnreadMessages(userId, userKind string) (int, error)
	CreateLocation(params CreateLocationParams) (Location, error)
	GetLatestLocation(orderId string) (Location, error)
	GetLocationHistory(orderId string, limit int) ([]Location, error)
	DeactivateLocations(orderId, shipperId string) (int, error)
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountById(accountId string) (Account, error)
	GetAccountByEmail(email string) (Account, error)
}
