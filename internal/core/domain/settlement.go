package domain

// Settlement is the record of a settled round, derived from its events.
type Settlement struct {
	Round        uint64
	RequestId    string
	Winner       string
	WinnerIndex  int
	Prize        uint64
	RandomValue  string
	Participants int
	StartedAt    int64
	SettledAt    int64
}

// NewSettlementFromEvents returns the settlement of a round given its log,
// or false if the round has not been settled.
func NewSettlementFromEvents(events []Event) (*Settlement, bool) {
	var settlement *Settlement
	var started *SettlementStarted

	for _, event := range events {
		switch e := event.(type) {
		case SettlementStarted:
			started = &e
		case WinnerPicked:
			randomValue := ""
			if e.RandomValue != nil {
				randomValue = e.RandomValue.String()
			}
			settlement = &Settlement{
				Round:       e.Round,
				RequestId:   e.RequestId,
				Winner:      e.Winner,
				WinnerIndex: e.WinnerIndex,
				Prize:       e.Prize,
				RandomValue: randomValue,
				SettledAt:   e.Timestamp,
			}
		}
	}
	if settlement == nil {
		return nil, false
	}
	if started != nil && started.RequestId == settlement.RequestId {
		settlement.Participants = started.Participants
		settlement.StartedAt = started.Timestamp
	}
	return settlement, true
}
