package domain

type CheckoutState string

const (
	CheckoutStateIdle             CheckoutState = "idle"
	CheckoutStateValidatingCoupon CheckoutState = "validating-coupon"
	CheckoutStateCouponApplied    CheckoutState = "coupon-applied"
	CheckoutStateCouponRejected   CheckoutState = "coupon-rejected"
	CheckoutStateStockBlocked     CheckoutState = "stock-blocked"
	CheckoutStateMethodUnresolved CheckoutState = "method-unresolved"
	CheckoutStateSubmitting       CheckoutState = "submitting"
	CheckoutStateSubmitted        CheckoutState = "submitted"
	CheckoutStateSubmissionFailed CheckoutState = "submission-failed"
)

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateSubmitted
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
