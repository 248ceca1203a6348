package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is an immutable journal entry of a completed balance transfer.
type Transfer struct {
	ID        uuid.UUID       `json:"id"`
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// Message is the confirmation shown to the sender.
func (t *Transfer) Message() string {
	return fmt.Sprintf("Success! You sent %s to @%s.", FormatAmount(t.Amount), t.Receiver)
}

// Involves reports whether username is the sender or the receiver.
func (t *Transfer) Involves(username string) bool {
	return t.Sender == username || t.Receiver == username
}
