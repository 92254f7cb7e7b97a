package ports

import (
	"context"
	"errors"
	"math/big"
)

var ErrNonexistentRequest = errors.New("nonexistent request")

// RequestParams are forwarded as-is with every randomness request.
type RequestParams struct {
	KeyHash              string
	SubscriptionId       uint64
	CallbackGasLimit     uint32
	RequestConfirmations uint16
	NumWords             uint32
}

// FulfillmentHandler is called by an entropy source to deliver the random
// values bound to a request id.
type FulfillmentHandler func(ctx context.Context, requestId string, randomValues []*big.Int) error

type EntropySource interface {
	RequestRandomValues(ctx context.Context, params RequestParams) (string, error)
	RegisterFulfillmentHandler(handler FulfillmentHandler)
	Close()
}

// ManualEntropySource is implemented by sources whose pending requests are
// fulfilled on demand rather than on their own schedule.
type ManualEntropySource interface {
	EntropySource
	Fulfill(ctx context.Context, requestId string) error
}
