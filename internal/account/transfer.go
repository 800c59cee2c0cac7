package account

import (
	"errors"
	"math"

	"github.com/kapu/rollhouse-backend-go/pkg/gamedto"
)

var (
	ErrNonPositiveAmount = errors.New("transfer amount must be positive")
	ErrSelfTransfer      = errors.New("sender and recipient are the same account")
)

// TransferStatus is the outcome of the two-account critical section.
type TransferStatus uint8

const (
	TransferApplied TransferStatus = iota
	TransferInsufficient
	TransferOverflow
)

type TransferResult struct {
	Status TransferStatus
	// SenderBalance is the sender's balance after the transfer, or the
	// unchanged balance on rejection.
	SenderBalance int64
	// RecipientBalance is captured while both balance locks are still
	// held, so it reflects exactly the state this transfer produced.
	// Only meaningful when Status is TransferApplied.
	RecipientBalance int64
}

// Transfer moves amount of kind from sender to recipient atomically.
//
// Both balance locks are taken in a fixed order derived from the account
// ids, regardless of which side initiated the gift. Any two transfers
// naming the same pair therefore acquire the locks in the same order and
// circular wait is impossible. The ordering only covers pairs; nothing in
// this design ever locks three accounts at once.
func Transfer(sender, recipient *Account, kind gamedto.ResourceType, amount int64) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, ErrNonPositiveAmount
	}
	if sender == recipient || sender.id == recipient.id {
		return TransferResult{}, ErrSelfTransfer
	}

	first, second := sender, recipient
	if recipient.id < sender.id {
		first, second = recipient, sender
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	// Re-check funds under the locks; the pre-lock validation balance may
	// be stale by now.
	cur := sender.balances[kind]
	if cur < amount {
		return TransferResult{Status: TransferInsufficient, SenderBalance: cur}, nil
	}
	// Crediting past the int64 ceiling would wrap the recipient negative.
	// Reject before debiting so neither side is touched.
	if recipient.balances[kind] > math.MaxInt64-amount {
		return TransferResult{Status: TransferOverflow, SenderBalance: cur}, nil
	}

	sender.balances[kind] = cur - amount
	recipient.balances[kind] += amount

	return TransferResult{
		Status:           TransferApplied,
		SenderBalance:    sender.balances[kind],
		RecipientBalance: recipient.balances[kind],
	}, nil
}
