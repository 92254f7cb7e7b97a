package application

import "errors"

var ErrManualFulfillmentUnsupported = errors.New(
	"entropy source does not support manual fulfillment",
)
