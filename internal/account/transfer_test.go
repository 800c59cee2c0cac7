package account

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/kapu/rollhouse-backend-go/pkg/gamedto"
)

func TestTransferMovesFunds(t *testing.T) {
	a := New("player_1", "d1", nil)
	b := New("player_2", "d2", nil)
	a.TryAdjust(gamedto.ResourceCoins, 1000)

	res, err := Transfer(a, b, gamedto.ResourceCoins, 400)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if res.Status != TransferApplied {
		t.Fatalf("status %v", res.Status)
	}
	if res.SenderBalance != 600 || res.RecipientBalance != 400 {
		t.Fatalf("balances in result: sender=%d recipient=%d", res.SenderBalance, res.RecipientBalance)
	}
	if a.Balance(gamedto.ResourceCoins) != 600 || b.Balance(gamedto.ResourceCoins) != 400 {
		t.Fatalf("stored balances: %d / %d", a.Balance(gamedto.ResourceCoins), b.Balance(gamedto.ResourceCoins))
	}
}

func TestTransferInsufficientLeavesBothUntouched(t *testing.T) {
	a := New("player_1", "d1", nil)
	b := New("player_2", "d2", nil)
	a.TryAdjust(gamedto.ResourceCoins, 100)

	res, err := Transfer(a, b, gamedto.ResourceCoins, 500)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if res.Status != TransferInsufficient {
		t.Fatalf("status %v", res.Status)
	}
	if res.SenderBalance != 100 {
		t.Fatalf("rejection must carry the current balance, got %d", res.SenderBalance)
	}
	if a.Balance(gamedto.ResourceCoins) != 100 || b.Balance(gamedto.ResourceCoins) != 0 {
		t.Fatal("rejected transfer mutated a balance")
	}
}

func TestTransferRejectsRecipientOverflow(t *testing.T) {
	a := New("player_1", "d1", nil)
	b := New("player_2", "d2", nil)
	a.TryAdjust(gamedto.ResourceCoins, 1000)
	b.TryAdjust(gamedto.ResourceCoins, math.MaxInt64)

	res, err := Transfer(a, b, gamedto.ResourceCoins, 1)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if res.Status != TransferOverflow {
		t.Fatalf("status %v", res.Status)
	}
	if res.SenderBalance != 1000 {
		t.Fatalf("rejection must carry the current balance, got %d", res.SenderBalance)
	}
	if got := a.Balance(gamedto.ResourceCoins); got != 1000 {
		t.Fatalf("sender debited on rejected transfer: %d", got)
	}
	if got := b.Balance(gamedto.ResourceCoins); got != math.MaxInt64 {
		t.Fatalf("recipient balance wrapped: %d", got)
	}
	if a.Balance(gamedto.ResourceCoins) < 0 || b.Balance(gamedto.ResourceCoins) < 0 {
		t.Fatal("balance observed negative")
	}
}

func TestTransferArgumentChecks(t *testing.T) {
	a := New("player_1", "d1", nil)
	b := New("player_2", "d2", nil)

	if _, err := Transfer(a, b, gamedto.ResourceCoins, 0); !errors.Is(err, ErrNonPositiveAmount) {
		t.Fatalf("zero amount: %v", err)
	}
	if _, err := Transfer(a, b, gamedto.ResourceCoins, -5); !errors.Is(err, ErrNonPositiveAmount) {
		t.Fatalf("negative amount: %v", err)
	}
	if _, err := Transfer(a, a, gamedto.ResourceCoins, 10); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("self transfer: %v", err)
	}
}

// Opposing transfers between the same pair must not deadlock: both sides
// acquire the balance locks in the identity-derived order.
func TestOpposingTransfersDoNotDeadlock(t *testing.T) {
	a := New("player_1", "d1", nil)
	b := New("player_2", "d2", nil)
	a.TryAdjust(gamedto.ResourceCoins, 10000)
	b.TryAdjust(gamedto.ResourceCoins, 10000)

	const rounds = 500
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < rounds; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = Transfer(a, b, gamedto.ResourceCoins, 1)
			}()
			go func() {
				defer wg.Done()
				_, _ = Transfer(b, a, gamedto.ResourceCoins, 1)
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("transfers deadlocked")
	}

	total := a.Balance(gamedto.ResourceCoins) + b.Balance(gamedto.ResourceCoins)
	if total != 20000 {
		t.Fatalf("currency not conserved: total %d", total)
	}
}

func TestFanOutTransfersAllSucceed(t *testing.T) {
	const n = 20
	const amount = 50

	sender := New("player_0", "d0", nil)
	sender.TryAdjust(gamedto.ResourceCoins, n*amount)

	recipients := make([]*Account, n)
	for i := range recipients {
		recipients[i] = New(fmt.Sprintf("player_%d", i+1), fmt.Sprintf("d%d", i+1), nil)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, r := range recipients {
		wg.Add(1)
		go func(r *Account) {
			defer wg.Done()
			res, err := Transfer(sender, r, gamedto.ResourceCoins, amount)
			if err != nil {
				errs <- err
				return
			}
			if res.Status != TransferApplied {
				errs <- fmt.Errorf("transfer to %s rejected", r.ID())
			}
		}(r)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("fan-out transfer failed: %v", err)
	}

	if got := sender.Balance(gamedto.ResourceCoins); got != 0 {
		t.Fatalf("sender balance %d, want 0", got)
	}
	for _, r := range recipients {
		if got := r.Balance(gamedto.ResourceCoins); got != amount {
			t.Fatalf("recipient %s balance %d, want %d", r.ID(), got, amount)
		}
	}
}
