package domain

import "math/big"

const RaffleTopic = "raffle"

type EventType string

const (
	EventTypeRoundOpened       EventType = "ROUND_OPENED"
	EventTypeEntered           EventType = "ENTERED"
	EventTypeSettlementStarted EventType = "SETTLEMENT_STARTED"
	EventTypeWinnerPicked      EventType = "WINNER_PICKED"
	EventTypeSettlementAborted EventType = "SETTLEMENT_ABORTED"
)

type Event interface {
	GetTopic() string
	GetType() EventType
	GetRound() uint64
}

type RaffleEvent struct {
	Round uint64
	Type  EventType
}

func (e RaffleEvent) GetTopic() string   { return RaffleTopic }
func (e RaffleEvent) GetType() EventType { return e.Type }
func (e RaffleEvent) GetRound() uint64   { return e.Round }

type RoundOpened struct {
	RaffleEvent
	Timestamp     int64
	LastWinner    string
	LastSettledAt int64
}

type Entered struct {
	RaffleEvent
	Participant  string
	Amount       uint64
	Participants int
}

type SettlementStarted struct {
	RaffleEvent
	RequestId     string
	Participants  int
	PooledBalance uint64
	Timestamp     int64
}

type WinnerPicked struct {
	RaffleEvent
	RequestId   string
	Winner      string
	WinnerIndex int
	Prize       uint64
	RandomValue *big.Int
	Timestamp   int64
}

// SettlementAborted is raised when a stalled settlement is reopened. The
// pending request id it carries is no longer accepted.
type SettlementAborted struct {
	RaffleEvent
	RequestId string
	Timestamp int64
}
