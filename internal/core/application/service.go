package application

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/ark-network/raffle/internal/core/ports"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	EntranceFee        uint64
	SettlementInterval int64
	Overpayment        domain.OverpaymentPolicy
	// UpkeepInterval is how often, in seconds, readiness is polled.
	UpkeepInterval int64
	// SettlementTimeout enables ReopenStalledSettlement when positive.
	SettlementTimeout int64
	RequestParams     ports.RequestParams
}

type raffleService struct {
	terms             domain.Terms
	requestParams     ports.RequestParams
	upkeepInterval    int64
	settlementTimeout int64

	repoManager ports.RepoManager
	liveStore   ports.LiveStore
	scheduler   ports.SchedulerService
	entropy     ports.EntropySource
	ledger      ports.Ledger
	eventBus    ports.EventBus
	notifier    ports.Notifier

	// guards every operation mutating the current raffle.
	lock *sync.Mutex
	now  func() time.Time
}

func NewService(
	cfg Config,
	repoManager ports.RepoManager, liveStore ports.LiveStore,
	scheduler ports.SchedulerService, entropy ports.EntropySource,
	ledger ports.Ledger, eventBus ports.EventBus, notifier ports.Notifier,
) (Service, error) {
	if cfg.EntranceFee <= 0 {
		return nil, fmt.Errorf("entrance fee must be greater than zero")
	}
	if cfg.SettlementInterval < 0 {
		return nil, fmt.Errorf("settlement interval must not be negative")
	}
	if cfg.UpkeepInterval <= 0 {
		return nil, fmt.Errorf("upkeep interval must be greater than zero")
	}
	if cfg.RequestParams.NumWords != 1 {
		return nil, fmt.Errorf("exactly one random value must be requested")
	}

	svc := &raffleService{
		terms: domain.Terms{
			EntranceFee:        cfg.EntranceFee,
			SettlementInterval: cfg.SettlementInterval,
			Overpayment:        cfg.Overpayment,
		},
		requestParams:     cfg.RequestParams,
		upkeepInterval:    cfg.UpkeepInterval,
		settlementTimeout: cfg.SettlementTimeout,
		repoManager:       repoManager,
		liveStore:         liveStore,
		scheduler:         scheduler,
		entropy:           entropy,
		ledger:            ledger,
		eventBus:          eventBus,
		notifier:          notifier,
		lock:              &sync.Mutex{},
		now:               time.Now,
	}

	repoManager.Events().RegisterEventsHandler(
		domain.RaffleTopic, func(events []domain.Event) {
			svc.updateProjectionStore(events)
			svc.propagateEvents(events)
		},
	)
	entropy.RegisterFulfillmentHandler(svc.FulfillSettlement)

	return svc, nil
}

func (s *raffleService) Start() error {
	log.Debug("restoring current raffle...")
	if err := s.restore(context.Background()); err != nil {
		return err
	}

	log.Debug("starting upkeep trigger...")
	if err := s.scheduler.ScheduleTask(
		s.upkeepInterval, false, s.performUpkeep,
	); err != nil {
		return fmt.Errorf("failed to schedule upkeep: %s", err)
	}
	s.scheduler.Start()
	return nil
}

func (s *raffleService) Stop() {
	s.scheduler.Stop()
	log.Debug("stopped upkeep trigger")
	s.entropy.Close()
	log.Debug("closed entropy source")
	s.repoManager.Close()
	log.Debug("closed connection to db")
	s.liveStore.Close()
	log.Debug("closed live store")
	s.ledger.Close()
	log.Debug("closed ledger")
	if s.notifier != nil {
		s.notifier.Close()
		log.Debug("closed notifier")
	}
	if err := s.eventBus.Close(); err != nil {
		log.WithError(err).Warn("failed to close event bus")
	}
}

func (s *raffleService) Enter(
	ctx context.Context, participant string, amount uint64,
) (int, error) {
	if !common.IsHexAddress(participant) {
		return 0, domain.ErrInvalidParticipant
	}
	participant = common.HexToAddress(participant).Hex()

	s.lock.Lock()
	defer s.lock.Unlock()

	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := raffle.Enter(participant, amount); err != nil {
		return 0, err
	}
	if err := s.commit(ctx, raffle); err != nil {
		return 0, err
	}

	log.Debugf(
		"%s entered round %d with %d, participants: %d",
		participant, raffle.Round, amount, raffle.ParticipantCount(),
	)
	return raffle.ParticipantCount(), nil
}

func (s *raffleService) IsReadyToSettle(
	ctx context.Context, checkData []byte,
) (bool, []byte) {
	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to get current raffle")
		return false, nil
	}
	if !raffle.IsReadyToSettle(s.now().Unix()) {
		return false, nil
	}
	return true, checkData
}

func (s *raffleService) InitiateSettlement(
	ctx context.Context, _ []byte,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		return err
	}

	now := s.now().Unix()
	if err := raffle.CheckUpkeep(now); err != nil {
		return err
	}

	requestId, err := s.entropy.RequestRandomValues(ctx, s.requestParams)
	if err != nil {
		return fmt.Errorf("failed to request random values: %w", err)
	}

	if _, err := raffle.StartSettlement(requestId, now); err != nil {
		return err
	}
	if err := s.commit(ctx, raffle); err != nil {
		return err
	}

	log.Infof(
		"started settlement of round %d with request %s, participants: %d, pool: %d",
		raffle.Round, requestId, raffle.ParticipantCount(), raffle.PooledBalance,
	)
	return nil
}

func (s *raffleService) FulfillSettlement(
	ctx context.Context, requestId string, randomValues []*big.Int,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		return err
	}

	events, err := raffle.FulfillSettlement(requestId, randomValues, s.now().Unix())
	if err != nil {
		return err
	}

	var picked *domain.WinnerPicked
	for _, event := range events {
		if e, ok := event.(domain.WinnerPicked); ok {
			picked = &e
			break
		}
	}
	if picked == nil {
		return fmt.Errorf("missing winner for request %s", requestId)
	}

	if picked.Prize > 0 {
		if err := s.ledger.Transfer(
			ctx, payoutRef(picked.Round, requestId), picked.Winner, picked.Prize,
		); err != nil {
			log.WithError(err).Warnf(
				"failed to pay %d to %s for round %d", picked.Prize, picked.Winner, picked.Round,
			)
			return fmt.Errorf("%w: %s", domain.ErrPayoutFailed, err)
		}
	}

	if err := s.commit(ctx, raffle); err != nil {
		return err
	}

	log.Infof(
		"round %d settled, winner: %s (index %d), prize: %d",
		picked.Round, picked.Winner, picked.WinnerIndex, picked.Prize,
	)
	return nil
}

func (s *raffleService) ReopenStalledSettlement(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		return err
	}

	requestId := raffle.PendingRequestId
	if _, err := raffle.ReopenStalledSettlement(
		s.settlementTimeout, s.now().Unix(),
	); err != nil {
		return err
	}
	if err := s.commit(ctx, raffle); err != nil {
		return err
	}

	log.Warnf("reopened round %d, dropped request %s", raffle.Round, requestId)
	return nil
}

func (s *raffleService) FulfillPendingRequest(
	ctx context.Context, requestId string,
) error {
	source, ok := s.entropy.(ports.ManualEntropySource)
	if !ok {
		return ErrManualFulfillmentUnsupported
	}
	return source.Fulfill(ctx, requestId)
}

func (s *raffleService) GetState(ctx context.Context) (domain.RaffleState, error) {
	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		return domain.Open, err
	}
	return raffle.State, nil
}

func (s *raffleService) GetParticipantCount(ctx context.Context) (int, error) {
	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		return 0, err
	}
	return raffle.ParticipantCount(), nil
}

func (s *raffleService) GetParticipant(ctx context.Context, index int) (string, error) {
	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		return "", err
	}
	return raffle.GetParticipant(index)
}

func (s *raffleService) GetParticipants(ctx context.Context) ([]string, error) {
	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		return nil, err
	}
	return raffle.Participants, nil
}

func (s *raffleService) GetEntranceFee(_ context.Context) uint64 {
	return s.terms.EntranceFee
}

func (s *raffleService) GetSettlementInterval(_ context.Context) int64 {
	return s.terms.SettlementInterval
}

func (s *raffleService) GetLastWinner(ctx context.Context) (string, error) {
	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		return "", err
	}
	return raffle.LastWinner, nil
}

func (s *raffleService) GetPooledBalance(ctx context.Context) (uint64, error) {
	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		return 0, err
	}
	return raffle.PooledBalance, nil
}

func (s *raffleService) GetRoundOpenedAt(ctx context.Context) (int64, error) {
	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		return 0, err
	}
	return raffle.RoundOpenedAt, nil
}

func (s *raffleService) GetInfo(ctx context.Context) (*RaffleInfo, error) {
	raffle, err := s.currentRaffle(ctx)
	if err != nil {
		return nil, err
	}

	return &RaffleInfo{
		Round:               raffle.Round,
		State:               raffle.State,
		EntranceFee:         s.terms.EntranceFee,
		SettlementInterval:  s.terms.SettlementInterval,
		OverpaymentPolicy:   s.terms.Overpayment.String(),
		Participants:        raffle.ParticipantCount(),
		PooledBalance:       raffle.PooledBalance,
		RoundOpenedAt:       raffle.RoundOpenedAt,
		PendingRequestId:    raffle.PendingRequestId,
		SettlementStartedAt: raffle.SettlementStartedAt,
		LastWinner:          raffle.LastWinner,
		LastSettledAt:       raffle.LastSettledAt,
		ReadyToSettle:       raffle.IsReadyToSettle(s.now().Unix()),
	}, nil
}

func (s *raffleService) GetSettlement(
	ctx context.Context, round uint64,
) (*domain.Settlement, error) {
	return s.repoManager.Settlements().GetSettlement(ctx, round)
}

func (s *raffleService) ListSettlements(
	ctx context.Context, limit int,
) ([]domain.Settlement, error) {
	return s.repoManager.Settlements().ListSettlements(ctx, limit)
}

func (s *raffleService) GetBalance(ctx context.Context, account string) (uint64, error) {
	if !common.IsHexAddress(account) {
		return 0, domain.ErrInvalidParticipant
	}
	return s.ledger.Balance(ctx, common.HexToAddress(account).Hex())
}

func (s *raffleService) SubscribeEvents(ctx context.Context) (<-chan domain.Event, error) {
	return s.eventBus.Subscribe(ctx)
}

func (s *raffleService) restore(ctx context.Context) error {
	events, err := s.repoManager.Events().LoadCurrent(ctx)
	if err != nil {
		return fmt.Errorf("failed to load raffle events: %s", err)
	}

	if len(events) <= 0 {
		raffle := domain.NewRaffle(s.terms, s.now().Unix())
		if err := s.commit(ctx, raffle); err != nil {
			return fmt.Errorf("failed to open raffle: %s", err)
		}
		log.Infof("opened round %d", raffle.Round)
		return nil
	}

	raffle := domain.NewRaffleFromEvents(s.terms, events)
	// The event log wins over whatever a shared live store still holds.
	stored, err := s.liveStore.CurrentRaffle().Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current raffle: %s", err)
	}
	if stored != nil && stored.Version > raffle.Version {
		raffle.Version = stored.Version
	}
	if err := s.liveStore.CurrentRaffle().Set(ctx, raffle); err != nil {
		return fmt.Errorf("failed to restore raffle: %s", err)
	}
	log.Infof(
		"restored round %d in state %s with %d participants",
		raffle.Round, raffle.State, raffle.ParticipantCount(),
	)
	return nil
}

// currentRaffle returns a copy of the current raffle that can be mutated
// freely until committed.
func (s *raffleService) currentRaffle(ctx context.Context) (*domain.Raffle, error) {
	raffle, err := s.liveStore.CurrentRaffle().Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current raffle: %s", err)
	}
	if raffle == nil {
		return nil, fmt.Errorf("raffle not started")
	}
	raffle.Terms = s.terms
	return raffle, nil
}

func (s *raffleService) commit(ctx context.Context, raffle *domain.Raffle) error {
	changes := raffle.Events()
	if len(changes) <= 0 {
		return nil
	}
	if err := s.repoManager.Events().Save(ctx, changes...); err != nil {
		return fmt.Errorf("failed to store raffle events: %s", err)
	}

	raffle.Version += uint(len(changes))
	if err := s.liveStore.CurrentRaffle().Set(ctx, raffle.Clone()); err != nil {
		return fmt.Errorf("failed to update current raffle: %s", err)
	}
	return nil
}

func (s *raffleService) updateProjectionStore(events []domain.Event) {
	ctx := context.Background()

	for _, event := range events {
		picked, ok := event.(domain.WinnerPicked)
		if !ok {
			continue
		}

		roundEvents, err := s.repoManager.Events().LoadRound(ctx, picked.Round)
		if err != nil {
			log.WithError(err).Warnf("failed to load events of round %d", picked.Round)
			continue
		}
		settlement, ok := domain.NewSettlementFromEvents(roundEvents)
		if !ok {
			continue
		}
		if err := s.repoManager.Settlements().AddSettlement(ctx, *settlement); err != nil {
			log.WithError(err).Warnf("failed to store settlement of round %d", picked.Round)
			continue
		}
		log.Debugf("added settlement of round %d to projection store", picked.Round)
	}
}

func (s *raffleService) propagateEvents(events []domain.Event) {
	ctx := context.Background()

	if err := s.eventBus.Publish(ctx, events); err != nil {
		log.WithError(err).Warn("failed to publish raffle events")
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, events); err != nil {
		log.WithError(err).Warn("failed to notify raffle events")
	}
}

// payoutRef identifies the payout of a round. Entropy sources may hand out
// the same request id again after a restart, the round number never repeats.
func payoutRef(round uint64, requestId string) string {
	return fmt.Sprintf("%d:%s", round, requestId)
}
