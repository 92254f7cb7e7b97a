package beacon

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/ark-network/raffle/internal/core/ports"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
)

const (
	genesisMsg = "raffle beacon genesis"
	// maxAttempts is the number of times a fulfillment is delivered
	// before the request is dropped.
	maxAttempts = 10
	maxBlocks   = 256
)

type request struct {
	id            string
	numWords      uint32
	confirmations uint16
	ticks         uint16
	attempts      int
}

// Block is a single output of the beacon chain. Each signature signs the
// round number together with the previous signature.
type Block struct {
	Round     uint64
	Signature []byte
	Prev      []byte
}

type service struct {
	suite pairing.Suite
	sk    kyber.Scalar
	pk    kyber.Point
	delay time.Duration

	lock     *sync.Mutex
	round    uint64
	blocks   []Block
	requests map[string]*request
	handler  ports.FulfillmentHandler

	done chan struct{}
	wg   sync.WaitGroup
}

// NewService returns an entropy source backed by a BLS signature chain. The
// chain advances every delay and requests are fulfilled once they have seen
// as many blocks as their requested confirmations. The keypair is derived
// from seed if not empty.
func NewService(delay time.Duration, seed string) (ports.EntropySource, error) {
	if delay <= 0 {
		return nil, fmt.Errorf("beacon delay must be greater than zero")
	}

	suite := pairing.NewSuiteBn256()
	var sk kyber.Scalar
	var pk kyber.Point
	if len(seed) > 0 {
		sk = suite.G2().Scalar().Pick(blake2xb.New([]byte(seed)))
		pk = suite.G2().Point().Mul(sk, nil)
	} else {
		sk, pk = bls.NewKeyPair(suite, random.New())
	}

	svc := &service{
		suite:    suite,
		sk:       sk,
		pk:       pk,
		delay:    delay,
		lock:     &sync.Mutex{},
		blocks:   make([]Block, 0),
		requests: make(map[string]*request),
		done:     make(chan struct{}),
	}

	svc.wg.Add(1)
	go svc.listen()

	return svc, nil
}

func (s *service) RequestRandomValues(
	_ context.Context, params ports.RequestParams,
) (string, error) {
	if params.NumWords <= 0 {
		return "", fmt.Errorf("number of random values must be greater than zero")
	}

	confirmations := params.RequestConfirmations
	if confirmations <= 0 {
		confirmations = 1
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	id := uuid.New().String()
	s.requests[id] = &request{
		id:            id,
		numWords:      params.NumWords,
		confirmations: confirmations,
	}

	log.Debugf("beacon: registered request %s", id)
	return id, nil
}

func (s *service) RegisterFulfillmentHandler(handler ports.FulfillmentHandler) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.handler = handler
}

func (s *service) Close() {
	close(s.done)
	s.wg.Wait()
}

func (s *service) PublicKey() kyber.Point {
	return s.pk
}

// Blocks returns the most recent blocks of the chain, oldest first.
func (s *service) Blocks() []Block {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]Block{}, s.blocks...)
}

func (s *service) listen() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.delay)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			block, err := s.nextBlock()
			if err != nil {
				log.WithError(err).Warn("beacon: failed to produce block")
				continue
			}
			s.fulfillRequests(block)
		}
	}
}

func (s *service) nextBlock() (*Block, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	round := s.round
	var prev []byte
	if len(s.blocks) > 0 {
		prev = s.blocks[len(s.blocks)-1].Signature
	}
	msg := createNextMsg(round, prev)

	sig, err := bls.Sign(s.suite, s.sk, msg)
	if err != nil {
		return nil, err
	}
	if err := bls.Verify(s.suite, s.pk, msg, sig); err != nil {
		return nil, fmt.Errorf("invalid signature for round %d: %s", round, err)
	}

	block := Block{Round: round, Signature: sig, Prev: prev}
	s.blocks = append(s.blocks, block)
	if len(s.blocks) > maxBlocks {
		s.blocks = s.blocks[len(s.blocks)-maxBlocks:]
	}
	s.round++
	return &block, nil
}

func (s *service) fulfillRequests(block *Block) {
	s.lock.Lock()
	handler := s.handler
	ready := make([]*request, 0)
	for _, req := range s.requests {
		if req.ticks < req.confirmations {
			req.ticks++
		}
		if req.ticks >= req.confirmations {
			ready = append(ready, req)
		}
	}
	s.lock.Unlock()

	if handler == nil || len(ready) <= 0 {
		return
	}

	for _, req := range ready {
		randomValues := deriveRandomValues(block.Signature, req.id, req.numWords)
		err := handler(context.Background(), req.id, randomValues)
		if err == nil || errors.Is(err, domain.ErrUnknownRequest) {
			if err != nil {
				log.Debugf("beacon: dropped request %s: %s", req.id, err)
			}
			s.removeRequest(req.id)
			continue
		}

		req.attempts++
		if req.attempts >= maxAttempts {
			log.WithError(err).Warnf(
				"beacon: dropped request %s after %d attempts", req.id, req.attempts,
			)
			s.removeRequest(req.id)
			continue
		}
		log.WithError(err).Warnf(
			"beacon: failed to fulfill request %s, retrying at next block", req.id,
		)
	}
}

func (s *service) removeRequest(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.requests, id)
}

func createNextMsg(round uint64, prev []byte) []byte {
	if round == 0 {
		return []byte(genesisMsg)
	}
	rBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(rBuf, round)
	return append(rBuf, prev...)
}

func deriveRandomValues(sig []byte, requestId string, numWords uint32) []*big.Int {
	randomValues := make([]*big.Int, 0, numWords)
	for i := uint32(0); i < numWords; i++ {
		index := make([]byte, 4)
		binary.BigEndian.PutUint32(index, i)
		word := crypto.Keccak256(sig, []byte(requestId), index)
		randomValues = append(randomValues, new(big.Int).SetBytes(word))
	}
	return randomValues
}

// VerifyBlock checks that the block was signed by the given public key on
// top of its predecessor.
func VerifyBlock(pk kyber.Point, block Block) error {
	suite := pairing.NewSuiteBn256()
	return bls.Verify(suite, pk, createNextMsg(block.Round, block.Prev), block.Signature)
}
