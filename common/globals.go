package common

const (
	InvoiceStatusDraft            = "draft"
	InvoiceStatusAwaitingApproval = "awaiting_approval"
	InvoiceStatusApproved         = "approved"
	InvoiceStatusListed           = "listed"
	InvoiceStatusSold             = "sold"
	InvoiceStatusDisputed         = "disputed"
	InvoiceStatusPaid             = "paid"
	InvoiceStatusCancelled        = "cancelled"

	NotificationInvoiceCreated          = "invoice_created"
	NotificationApprovalRequested       = "approval_requested"
	NotificationInvoiceApproved         = "invoice_approved"
	NotificationInvoiceDisputed         = "invoice_disputed"
	NotificationDisputeResolved         = "dispute_resolved"
	NotificationInvoicePaid             = "invoice_paid"
	NotificationPaymentConfirmed        = "payment_confirmed"
	NotificationInvoiceListed           = "invoice_listed"
	NotificationInvoiceSold             = "invoice_sold"
	NotificationInvoicePurchased        = "invoice_purchased"
	NotificationInvoiceOwnershipChanged = "invoice_ownership_changed"
	NotificationListingCancelled        = "listing_cancelled"

	DonationSourceDirect      = "direct"
	DonationSourceEscrowFee   = "escrow_fee"
	DonationSourceMarketplace = "marketplace"

	UserRoleSeller     = "seller"
	UserRolePayer      = "payer"
	UserRoleInvestor   = "investor"
	UserRoleArbitrator = "arbitrator"

	// every supported payment token uses 18 decimals
	TokenDecimals = 18
)

// chainStatusCodes is the status enum of the invoice registry contract.
// Index is the on-chain uint8 code.
var chainStatusCodes = []string{
	InvoiceStatusDraft,
	InvoiceStatusAwaitingApproval,
	InvoiceStatusApproved,
	InvoiceStatusListed,
	InvoiceStatusSold,
	InvoiceStatusDisputed,
	InvoiceStatusPaid,
	InvoiceStatusCancelled,
}

// StatusFromChainCode maps the registry's uint8 status to the mirrored status.
// Unknown codes fall back to draft.
func StatusFromChainCode(code uint8) string {
	if int(code) >= len(chainStatusCodes) {
		return InvoiceStatusDraft
	}
	return chainStatusCodes[code]
}

var transitions = map[string][]string{
	InvoiceStatusDraft:            {InvoiceStatusAwaitingApproval, InvoiceStatusCancelled},
	InvoiceStatusAwaitingApproval: {InvoiceStatusApproved, InvoiceStatusDisputed},
	InvoiceStatusDisputed:         {InvoiceStatusApproved, InvoiceStatusCancelled},
	InvoiceStatusApproved:         {InvoiceStatusListed, InvoiceStatusPaid},
	InvoiceStatusListed:           {InvoiceStatusSold, InvoiceStatusApproved},
	InvoiceStatusSold:             {InvoiceStatusPaid},
}

// CanTransition reports whether the registry allows moving from one status to another.
// Re-applying the current status is always allowed so replays stay quiet.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminalStatus(status string) bool {
	return status == InvoiceStatusPaid || status == InvoiceStatusCancelled
}
