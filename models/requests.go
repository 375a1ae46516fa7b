package models

// BankTransferCompleteRequest is posted by the storefront once the customer
// has entered the reference from their bank transfer receipt.
type BankTransferCompleteRequest struct {
	TransactionID string `json:"transaction_id"`
}

// PaymentStatusUpdateRequest is the admin override payload.
type PaymentStatusUpdateRequest struct {
	PaymentStatus PaymentStatus `json:"payment_status"`
}
