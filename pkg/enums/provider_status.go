package enums

// ProviderStatus records the last payment-provider or back-office marker on an order.
type ProviderStatus string

const (
	ProviderStatusCreatedInPayPal          ProviderStatus = "CREATED_IN_PAYPAL"
	ProviderStatusSubmitted                ProviderStatus = "SUBMITTED"
	ProviderStatusApproved                 ProviderStatus = "APPROVED"
	ProviderStatusRejected                 ProviderStatus = "REJECTED"
	ProviderStatusApprovalReverted         ProviderStatus = "APPROVAL_REVERTED"
	ProviderStatusRefundRejectedByAdmin    ProviderStatus = "REFUND_REJECTED_BY_ADMIN"
	ProviderStatusManuallyRefundedApproved ProviderStatus = "MANUALLY_REFUNDED_APPROVED"
	ProviderStatusManuallyRefundedByAdmin  ProviderStatus = "MANUALLY_REFUNDED_BY_ADMIN"
)

// String implements fmt.Stringer.
func (p ProviderStatus) String() string {
	return string(p)
}
