package domain

import (
	"encoding/json"
	"fmt"
)

type eventEnvelope struct {
	Type    EventType
	Payload json.RawMessage
}

// EncodeEvent serializes an event together with its type so that it can be
// decoded back into the right concrete type.
func EncodeEvent(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventEnvelope{event.GetType(), payload})
}

func DecodeEvent(buf []byte) (Event, error) {
	envelope := eventEnvelope{}
	if err := json.Unmarshal(buf, &envelope); err != nil {
		return nil, err
	}

	var event Event
	var err error
	switch envelope.Type {
	case EventTypeRoundOpened:
		e := RoundOpened{}
		err = json.Unmarshal(envelope.Payload, &e)
		event = e
	case EventTypeEntered:
		e := Entered{}
		err = json.Unmarshal(envelope.Payload, &e)
		event = e
	case EventTypeSettlementStarted:
		e := SettlementStarted{}
		err = json.Unmarshal(envelope.Payload, &e)
		event = e
	case EventTypeWinnerPicked:
		e := WinnerPicked{}
		err = json.Unmarshal(envelope.Payload, &e)
		event = e
	case EventTypeSettlementAborted:
		e := SettlementAborted{}
		err = json.Unmarshal(envelope.Payload, &e)
		event = e
	default:
		return nil, fmt.Errorf("unknown event type %s", envelope.Type)
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}
