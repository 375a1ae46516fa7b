package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ReconciliationOutcome string

const (
	OutcomeMatched         ReconciliationOutcome = "matched"
	OutcomeMismatch        ReconciliationOutcome = "mismatch"
	OutcomeNoRecord        ReconciliationOutcome = "no_record"
	OutcomeNoOrder         ReconciliationOutcome = "no_order"
	OutcomeNoTransactionID ReconciliationOutcome = "no_transaction_id"
	OutcomeNoAmount        ReconciliationOutcome = "no_amount"
	OutcomeUnparseable     ReconciliationOutcome = "unparseable"
	OutcomeError           ReconciliationOutcome = "error"
)

// ReconciliationAttempt is the audit row written for every email the
// reconciliation job reads. Once a message is marked read it is never
// fetched again, so this row is what an operator follows up on.
type ReconciliationAttempt struct {
	ID            uint                  `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time             `json:"created_at"`
	RunStartedAt  time.Time             `gorm:"index" json:"run_started_at"`
	MessageSeq    uint32                `json:"message_seq"`
	Sender        string                `gorm:"type:varchar(255)" json:"sender"`
	Subject       string                `gorm:"type:varchar(998)" json:"subject"`
	TransactionID string                `gorm:"type:varchar(64);index" json:"transaction_id,omitempty"`
	Amount        decimal.NullDecimal   `gorm:"type:numeric(20,2)" json:"amount"`
	Outcome       ReconciliationOutcome `gorm:"type:varchar(32);index" json:"outcome"`
	PaymentInfoID *string               `gorm:"type:varchar(36)" json:"payment_info_id,omitempty"`
	Detail        string                `json:"detail,omitempty"`
	Snapshot      datatypes.JSONMap     `gorm:"type:jsonb" json:"snapshot,omitempty"`
}
