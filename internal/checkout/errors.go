package checkout

import "errors"

var ErrIllegalTransition = errors.New("illegal transition of checkout state")

const (
	reasonAuthRequired     = "authentication required"
	reasonEmptyCart        = "cart is empty"
	reasonInFlight         = "a checkout is already in progress"
	reasonReservation      = "stock reservation failed"
	reasonOrderCreation    = "order creation failed"
	reasonInventoryOffline = "inventory is unavailable, try again"
)
