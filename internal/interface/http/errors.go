package httpservice

import (
	"errors"
	"net/http"

	"github.com/ark-network/raffle/internal/core/application"
	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/ark-network/raffle/internal/core/ports"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

var (
	badRequestErrors = []error{
		domain.ErrInvalidParticipant,
		domain.ErrInsufficientPayment,
		domain.ErrIncorrectPayment,
		domain.ErrPoolOverflow,
		domain.ErrUnknownRequest,
		domain.ErrMissingRandomValues,
	}
	notFoundErrors = []error{
		domain.ErrParticipantNotFound,
		domain.ErrSettlementNotFound,
		ports.ErrNonexistentRequest,
	}
	conflictErrors = []error{
		domain.ErrRoundNotOpen,
		domain.ErrUpkeepNotNeeded,
		domain.ErrRecoveryDisabled,
		domain.ErrSettlementNotStalled,
	}
)

func statusCode(err error) int {
	switch {
	case isAny(err, badRequestErrors):
		return http.StatusBadRequest
	case isAny(err, notFoundErrors):
		return http.StatusNotFound
	case isAny(err, conflictErrors):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPayoutFailed):
		return http.StatusBadGateway
	case errors.Is(err, application.ErrManualFulfillmentUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		log.WithError(err).Errorf("%s %s failed", c.Request.Method, c.FullPath())
	}

	resp := errorResponse{Error: err.Error()}
	var upkeepErr *domain.UpkeepNotNeededError
	if errors.As(err, &upkeepErr) {
		participants := upkeepErr.Participants
		resp.Balance = upkeepErr.Balance
		resp.Participants = &participants
		resp.State = upkeepErr.State.String()
	}
	c.AbortWithStatusJSON(code, resp)
}

func abortWithBadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
