package contracts

type QueueError string

const (
	ErrDuplicateItem QueueError = "item already queued"
	ErrItemNotFound  QueueError = "item not found"
	ErrInvalidToken  QueueError = "invalid dispatch token"
	ErrUnknownAction QueueError = "unknown dispatch action"
)

func (e QueueError) Error() string { return string(e) }
