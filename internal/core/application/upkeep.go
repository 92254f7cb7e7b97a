package application

import (
	"context"
	"errors"

	"github.com/ark-network/raffle/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

// performUpkeep is the periodic trigger: it checks readiness and, when the
// round can be closed, initiates its settlement.
func (s *raffleService) performUpkeep() {
	ctx := context.Background()

	ready, performData := s.IsReadyToSettle(ctx, nil)
	if !ready {
		s.checkStalledSettlement(ctx)
		return
	}

	if err := s.InitiateSettlement(ctx, performData); err != nil {
		if errors.Is(err, domain.ErrUpkeepNotNeeded) {
			log.WithError(err).Debug("skipping upkeep")
			return
		}
		log.WithError(err).Warn("failed to initiate settlement")
	}
}

func (s *raffleService) checkStalledSettlement(ctx context.Context) {
	if s.settlementTimeout <= 0 {
		return
	}

	raffle, err := s.currentRaffle(ctx)
	if err != nil || !raffle.IsSettling() {
		return
	}
	if s.now().Unix()-raffle.SettlementStartedAt >= s.settlementTimeout {
		log.Warnf(
			"settlement of round %d is stalled, request %s still pending",
			raffle.Round, raffle.PendingRequestId,
		)
	}
}
