package domain

import (
	"fmt"
	"math/big"
)

const (
	Open RaffleState = iota
	Settling
)

type RaffleState int

func (s RaffleState) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Settling:
		return "SETTLING"
	default:
		return "UNDEFINED"
	}
}

const (
	RetainExcess OverpaymentPolicy = iota
	RejectExcess
)

// OverpaymentPolicy tells what to do with entries paying more than the
// entrance fee.
type OverpaymentPolicy int

func (p OverpaymentPolicy) String() string {
	switch p {
	case RejectExcess:
		return "reject"
	default:
		return "retain"
	}
}

type Terms struct {
	EntranceFee        uint64
	SettlementInterval int64
	Overpayment        OverpaymentPolicy
}

type Raffle struct {
	Terms
	Round               uint64
	State               RaffleState
	Participants        []string
	PooledBalance       uint64
	RoundOpenedAt       int64
	PendingRequestId    string
	SettlementStartedAt int64
	LastWinner          string
	LastSettledAt       int64
	Version             uint
	changes             []Event
}

func NewRaffle(terms Terms, now int64) *Raffle {
	r := &Raffle{
		Terms:        terms,
		Participants: make([]string, 0),
		changes:      make([]Event, 0),
	}
	r.raise(RoundOpened{
		RaffleEvent: RaffleEvent{Round: 1, Type: EventTypeRoundOpened},
		Timestamp:   now,
	})
	return r
}

func NewRaffleFromEvents(terms Terms, events []Event) *Raffle {
	r := &Raffle{
		Terms:        terms,
		Participants: make([]string, 0),
	}

	for _, event := range events {
		r.On(event, true)
	}

	r.changes = make([]Event, 0)

	return r
}

func (r *Raffle) Events() []Event {
	return r.changes
}

func (r *Raffle) On(event Event, replayed bool) {
	switch e := event.(type) {
	case RoundOpened:
		r.Round = e.Round
		r.State = Open
		r.Participants = make([]string, 0)
		r.PooledBalance = 0
		r.PendingRequestId = ""
		r.SettlementStartedAt = 0
		r.RoundOpenedAt = e.Timestamp
		r.LastWinner = e.LastWinner
		r.LastSettledAt = e.LastSettledAt
	case Entered:
		r.Participants = append(r.Participants, e.Participant)
		r.PooledBalance += e.Amount
	case SettlementStarted:
		r.State = Settling
		r.PendingRequestId = e.RequestId
		r.SettlementStartedAt = e.Timestamp
	case WinnerPicked:
		// The round is reset in place, the following RoundOpened only
		// restates what is set here.
		r.LastWinner = e.Winner
		r.LastSettledAt = e.Timestamp
		r.Round = e.Round + 1
		r.State = Open
		r.Participants = make([]string, 0)
		r.PooledBalance = 0
		r.PendingRequestId = ""
		r.SettlementStartedAt = 0
		r.RoundOpenedAt = e.Timestamp
	case SettlementAborted:
		r.State = Open
		r.PendingRequestId = ""
		r.SettlementStartedAt = 0
	}

	if replayed {
		r.Version++
	}
}

func (r *Raffle) Enter(participant string, amount uint64) ([]Event, error) {
	if r.State != Open {
		return nil, ErrRoundNotOpen
	}
	if len(participant) <= 0 {
		return nil, ErrInvalidParticipant
	}
	if amount < r.EntranceFee {
		return nil, ErrInsufficientPayment
	}
	if r.Overpayment == RejectExcess && amount != r.EntranceFee {
		return nil, ErrIncorrectPayment
	}
	if r.PooledBalance+amount < r.PooledBalance {
		return nil, ErrPoolOverflow
	}

	event := Entered{
		RaffleEvent:  RaffleEvent{Round: r.Round, Type: EventTypeEntered},
		Participant:  participant,
		Amount:       amount,
		Participants: len(r.Participants) + 1,
	}
	r.raise(event)

	return []Event{event}, nil
}

// CheckUpkeep returns an *UpkeepNotNeededError unless the round can be
// closed at the given time.
func (r *Raffle) CheckUpkeep(now int64) error {
	isOpen := r.State == Open
	timePassed := now-r.RoundOpenedAt >= r.SettlementInterval
	hasParticipants := len(r.Participants) > 0
	hasBalance := r.PooledBalance > 0

	if isOpen && timePassed && hasParticipants && hasBalance {
		return nil
	}
	return &UpkeepNotNeededError{
		Balance:      r.PooledBalance,
		Participants: len(r.Participants),
		State:        r.State,
	}
}

func (r *Raffle) IsReadyToSettle(now int64) bool {
	return r.CheckUpkeep(now) == nil
}

func (r *Raffle) StartSettlement(requestId string, now int64) ([]Event, error) {
	if err := r.CheckUpkeep(now); err != nil {
		return nil, err
	}
	if len(requestId) <= 0 {
		return nil, fmt.Errorf("missing request id")
	}

	event := SettlementStarted{
		RaffleEvent:   RaffleEvent{Round: r.Round, Type: EventTypeSettlementStarted},
		RequestId:     requestId,
		Participants:  len(r.Participants),
		PooledBalance: r.PooledBalance,
		Timestamp:     now,
	}
	r.raise(event)

	return []Event{event}, nil
}

// FulfillSettlement picks the winner of the current round and resets the
// raffle for the next one. The returned WinnerPicked event carries the
// payout to be made before the changes are committed.
func (r *Raffle) FulfillSettlement(
	requestId string, randomValues []*big.Int, now int64,
) ([]Event, error) {
	if r.State != Settling || len(r.PendingRequestId) <= 0 {
		return nil, ErrUnknownRequest
	}
	if requestId != r.PendingRequestId {
		return nil, ErrUnknownRequest
	}
	if len(randomValues) <= 0 || randomValues[0] == nil {
		return nil, ErrMissingRandomValues
	}
	if len(r.Participants) <= 0 {
		return nil, fmt.Errorf("not in a valid stage to pick a winner: no participants")
	}

	round := r.Round
	index := WinnerIndex(randomValues[0], len(r.Participants))
	winner := r.Participants[index]

	picked := WinnerPicked{
		RaffleEvent: RaffleEvent{Round: round, Type: EventTypeWinnerPicked},
		RequestId:   requestId,
		Winner:      winner,
		WinnerIndex: index,
		Prize:       r.PooledBalance,
		RandomValue: new(big.Int).Set(randomValues[0]),
		Timestamp:   now,
	}
	opened := RoundOpened{
		RaffleEvent:   RaffleEvent{Round: round + 1, Type: EventTypeRoundOpened},
		Timestamp:     now,
		LastWinner:    winner,
		LastSettledAt: now,
	}
	r.raise(picked)
	r.raise(opened)

	return []Event{picked, opened}, nil
}

// ReopenStalledSettlement gives up on the pending request once it has been
// outstanding for at least timeout seconds. Participants and pooled balance
// are kept for the next settlement attempt.
func (r *Raffle) ReopenStalledSettlement(timeout, now int64) ([]Event, error) {
	if timeout <= 0 {
		return nil, ErrRecoveryDisabled
	}
	if r.State != Settling {
		return nil, fmt.Errorf("not in a valid stage to reopen settlement")
	}
	if now-r.SettlementStartedAt < timeout {
		return nil, ErrSettlementNotStalled
	}

	event := SettlementAborted{
		RaffleEvent: RaffleEvent{Round: r.Round, Type: EventTypeSettlementAborted},
		RequestId:   r.PendingRequestId,
		Timestamp:   now,
	}
	r.raise(event)

	return []Event{event}, nil
}

func (r *Raffle) GetParticipant(index int) (string, error) {
	if index < 0 || index >= len(r.Participants) {
		return "", ErrParticipantNotFound
	}
	return r.Participants[index], nil
}

func (r *Raffle) ParticipantCount() int {
	return len(r.Participants)
}

func (r *Raffle) IsOpen() bool {
	return r.State == Open
}

func (r *Raffle) IsSettling() bool {
	return r.State == Settling
}

// Clone returns a deep copy of the raffle without its uncommitted changes.
func (r *Raffle) Clone() *Raffle {
	clone := *r
	clone.Participants = append(make([]string, 0, len(r.Participants)), r.Participants...)
	clone.changes = make([]Event, 0)
	return &clone
}

func (r *Raffle) raise(event Event) {
	if r.changes == nil {
		r.changes = make([]Event, 0)
	}
	r.changes = append(r.changes, event)
	r.On(event, false)
}

// WinnerIndex maps a random value onto a participant index.
func WinnerIndex(randomValue *big.Int, participants int) int {
	mod := new(big.Int).Mod(randomValue, big.NewInt(int64(participants)))
	return int(mod.Int64())
}
