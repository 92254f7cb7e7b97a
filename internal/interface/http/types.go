package httpservice

import (
	"github.com/ark-network/raffle/internal/core/application"
	"github.com/ark-network/raffle/internal/core/domain"
)

type enterRequest struct {
	Participant string `json:"participant" binding:"required"`
	Amount      uint64 `json:"amount"`
}

type enterResponse struct {
	Participants int `json:"participants"`
}

type performUpkeepRequest struct {
	PerformData string `json:"perform_data"`
}

type checkUpkeepResponse struct {
	UpkeepNeeded bool   `json:"upkeep_needed"`
	PerformData  string `json:"perform_data"`
}

type infoResponse struct {
	Round               uint64 `json:"round"`
	State               string `json:"state"`
	StateCode           int    `json:"state_code"`
	EntranceFee         uint64 `json:"entrance_fee"`
	SettlementInterval  int64  `json:"settlement_interval"`
	OverpaymentPolicy   string `json:"overpayment_policy"`
	Participants        int    `json:"participants"`
	PooledBalance       uint64 `json:"pooled_balance"`
	RoundOpenedAt       int64  `json:"round_opened_at"`
	PendingRequestId    string `json:"pending_request_id,omitempty"`
	SettlementStartedAt int64  `json:"settlement_started_at,omitempty"`
	LastWinner          string `json:"last_winner"`
	LastSettledAt       int64  `json:"last_settled_at,omitempty"`
	ReadyToSettle       bool   `json:"ready_to_settle"`
}

func newInfoResponse(info *application.RaffleInfo) infoResponse {
	return infoResponse{
		Round:               info.Round,
		State:               info.State.String(),
		StateCode:           int(info.State),
		EntranceFee:         info.EntranceFee,
		SettlementInterval:  info.SettlementInterval,
		OverpaymentPolicy:   info.OverpaymentPolicy,
		Participants:        info.Participants,
		PooledBalance:       info.PooledBalance,
		RoundOpenedAt:       info.RoundOpenedAt,
		PendingRequestId:    info.PendingRequestId,
		SettlementStartedAt: info.SettlementStartedAt,
		LastWinner:          info.LastWinner,
		LastSettledAt:       info.LastSettledAt,
		ReadyToSettle:       info.ReadyToSettle,
	}
}

type participantsResponse struct {
	Count        int      `json:"count"`
	Participants []string `json:"participants"`
}

type participantResponse struct {
	Index       int    `json:"index"`
	Participant string `json:"participant"`
}

type settlementResponse struct {
	Round        uint64 `json:"round"`
	RequestId    string `json:"request_id"`
	Winner       string `json:"winner"`
	WinnerIndex  int    `json:"winner_index"`
	Prize        uint64 `json:"prize"`
	RandomValue  string `json:"random_value"`
	Participants int    `json:"participants"`
	StartedAt    int64  `json:"started_at"`
	SettledAt    int64  `json:"settled_at"`
}

func newSettlementResponse(s domain.Settlement) settlementResponse {
	return settlementResponse{
		Round:        s.Round,
		RequestId:    s.RequestId,
		Winner:       s.Winner,
		WinnerIndex:  s.WinnerIndex,
		Prize:        s.Prize,
		RandomValue:  s.RandomValue,
		Participants: s.Participants,
		StartedAt:    s.StartedAt,
		SettledAt:    s.SettledAt,
	}
}

type balanceResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

type eventMessage struct {
	Type  domain.EventType `json:"type"`
	Round uint64           `json:"round"`
	Event domain.Event     `json:"event"`
}

type errorResponse struct {
	Error        string `json:"error"`
	Balance      uint64 `json:"balance,omitempty"`
	Participants *int   `json:"participants,omitempty"`
	State        string `json:"state,omitempty"`
}
