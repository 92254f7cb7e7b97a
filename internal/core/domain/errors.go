package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientPayment  = errors.New("insufficient payment")
	ErrIncorrectPayment     = errors.New("payment must match the entrance fee")
	ErrPoolOverflow         = errors.New("payment overflows the pooled balance")
	ErrRoundNotOpen         = errors.New("round not open")
	ErrUpkeepNotNeeded      = errors.New("upkeep not needed")
	ErrUnknownRequest       = errors.New("unknown request")
	ErrPayoutFailed         = errors.New("payout failed")
	ErrMissingRandomValues  = errors.New("missing random values")
	ErrInvalidParticipant   = errors.New("invalid participant")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrRecoveryDisabled     = errors.New("stalled settlement recovery is disabled")
	ErrSettlementNotStalled = errors.New("settlement is not stalled yet")
	ErrSettlementNotFound   = errors.New("settlement not found")
)

// UpkeepNotNeededError carries a snapshot of the raffle at the time a
// settlement was refused.
type UpkeepNotNeededError struct {
	Balance      uint64
	Participants int
	State        RaffleState
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf(
		"%s (balance: %d, participants: %d, state: %s)",
		ErrUpkeepNotNeeded, e.Balance, e.Participants, e.State,
	)
}

func (e *UpkeepNotNeededError) Is(target error) bool {
	return target == ErrUpkeepNotNeeded
}
