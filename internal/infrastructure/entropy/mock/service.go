package mockentropy

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/ark-network/raffle/internal/core/ports"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
)

type service struct {
	lock     *sync.Mutex
	nextId   uint64
	requests map[string]ports.RequestParams
	handler  ports.FulfillmentHandler
}

// NewService returns an entropy source that holds every request until it is
// explicitly fulfilled. Request ids are sequential, starting from 1.
func NewService() ports.ManualEntropySource {
	return &service{
		lock:     &sync.Mutex{},
		nextId:   1,
		requests: make(map[string]ports.RequestParams),
	}
}

func (s *service) RequestRandomValues(
	_ context.Context, params ports.RequestParams,
) (string, error) {
	if params.NumWords <= 0 {
		return "", fmt.Errorf("number of random values must be greater than zero")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	id := strconv.FormatUint(s.nextId, 10)
	s.nextId++
	s.requests[id] = params
	return id, nil
}

func (s *service) RegisterFulfillmentHandler(handler ports.FulfillmentHandler) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.handler = handler
}

// Fulfill delivers pseudo random values for the given pending request. The
// request stays pending if the handler fails for any reason other than not
// recognizing it.
func (s *service) Fulfill(ctx context.Context, requestId string) error {
	s.lock.Lock()
	params, ok := s.requests[requestId]
	handler := s.handler
	s.lock.Unlock()

	if !ok {
		return ports.ErrNonexistentRequest
	}
	if handler == nil {
		return fmt.Errorf("no fulfillment handler registered")
	}

	randomValues := make([]*big.Int, 0, params.NumWords)
	for i := uint32(0); i < params.NumWords; i++ {
		index := make([]byte, 4)
		binary.BigEndian.PutUint32(index, i)
		word := crypto.Keccak256([]byte(requestId), index)
		randomValues = append(randomValues, new(big.Int).SetBytes(word))
	}

	err := handler(ctx, requestId, randomValues)
	if err != nil && !errors.Is(err, domain.ErrUnknownRequest) {
		return err
	}

	s.lock.Lock()
	delete(s.requests, requestId)
	s.lock.Unlock()

	if err != nil {
		log.Debugf("mock entropy: dropped request %s: %s", requestId, err)
	}
	return err
}

func (s *service) Close() {}
