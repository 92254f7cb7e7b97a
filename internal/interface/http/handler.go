package httpservice

import (
	"context"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ark-network/raffle/internal/core/application"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const writeTimeout = 10 * time.Second

func init() {
	gin.SetMode(gin.ReleaseMode)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type handler struct {
	svc application.Service
}

// NewHandler returns the REST router of the raffle. Pending entropy requests
// can be fulfilled through the admin routes only if manualEntropy is set.
func NewHandler(svc application.Service, manualEntropy bool) http.Handler {
	h := &handler{svc}

	router := gin.New()
	router.Use(gin.Recovery(), cors())

	v1 := router.Group("/v1")
	v1.GET("/info", h.getInfo)
	v1.GET("/state", h.getState)
	v1.GET("/fee", h.getEntranceFee)
	v1.GET("/interval", h.getSettlementInterval)
	v1.GET("/balance", h.getPooledBalance)
	v1.GET("/opened-at", h.getRoundOpenedAt)
	v1.GET("/last-winner", h.getLastWinner)
	v1.GET("/participants", h.getParticipants)
	v1.GET("/participants/:index", h.getParticipant)
	v1.POST("/enter", h.enter)
	v1.GET("/upkeep", h.checkUpkeep)
	v1.POST("/upkeep", h.performUpkeep)
	v1.GET("/settlements", h.listSettlements)
	v1.GET("/settlements/:round", h.getSettlement)
	v1.GET("/ledger/:account", h.getBalance)
	v1.GET("/events", h.streamEvents)

	// Admin routes are not authenticated. Keep the listener off public
	// networks or put it behind an authenticating proxy.
	admin := v1.Group("/admin")
	admin.POST("/reopen", h.reopenStalledSettlement)
	if manualEntropy {
		admin.POST("/entropy/:id/fulfill", h.fulfillRequest)
	}

	return router
}

func (h *handler) getInfo(c *gin.Context) {
	info, err := h.svc.GetInfo(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newInfoResponse(info))
}

func (h *handler) getState(c *gin.Context) {
	state, err := h.svc.GetState(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state.String(), "state_code": int(state)})
}

func (h *handler) getEntranceFee(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"entrance_fee": h.svc.GetEntranceFee(c.Request.Context()),
	})
}

func (h *handler) getSettlementInterval(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"settlement_interval": h.svc.GetSettlementInterval(c.Request.Context()),
	})
}

func (h *handler) getPooledBalance(c *gin.Context) {
	balance, err := h.svc.GetPooledBalance(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pooled_balance": balance})
}

func (h *handler) getRoundOpenedAt(c *gin.Context) {
	openedAt, err := h.svc.GetRoundOpenedAt(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round_opened_at": openedAt})
}

func (h *handler) getLastWinner(c *gin.Context) {
	winner, err := h.svc.GetLastWinner(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"last_winner": winner})
}

func (h *handler) getParticipants(c *gin.Context) {
	participants, err := h.svc.GetParticipants(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, participantsResponse{
		Count:        len(participants),
		Participants: participants,
	})
}

func (h *handler) getParticipant(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		abortWithBadRequest(c, "invalid index")
		return
	}

	participant, err := h.svc.GetParticipant(c.Request.Context(), index)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, participantResponse{index, participant})
}

func (h *handler) enter(c *gin.Context) {
	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBadRequest(c, "invalid request: "+err.Error())
		return
	}

	count, err := h.svc.Enter(c.Request.Context(), req.Participant, req.Amount)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, enterResponse{count})
}

func (h *handler) checkUpkeep(c *gin.Context) {
	checkData, err := decodeHex(c.Query("check_data"))
	if err != nil {
		abortWithBadRequest(c, "invalid check data (invalid hex)")
		return
	}

	needed, performData := h.svc.IsReadyToSettle(c.Request.Context(), checkData)
	c.JSON(http.StatusOK, checkUpkeepResponse{
		UpkeepNeeded: needed,
		PerformData:  hex.EncodeToString(performData),
	})
}

func (h *handler) performUpkeep(c *gin.Context) {
	var req performUpkeepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithBadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	performData, err := decodeHex(req.PerformData)
	if err != nil {
		abortWithBadRequest(c, "invalid perform data (invalid hex)")
		return
	}

	if err := h.svc.InitiateSettlement(c.Request.Context(), performData); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *handler) reopenStalledSettlement(c *gin.Context) {
	if err := h.svc.ReopenStalledSettlement(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *handler) fulfillRequest(c *gin.Context) {
	if err := h.svc.FulfillPendingRequest(
		c.Request.Context(), c.Param("id"),
	); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *handler) listSettlements(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			abortWithBadRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	settlements, err := h.svc.ListSettlements(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	resp := make([]settlementResponse, 0, len(settlements))
	for _, s := range settlements {
		resp = append(resp, newSettlementResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"settlements": resp})
}

func (h *handler) getSettlement(c *gin.Context) {
	round, err := strconv.ParseUint(c.Param("round"), 10, 64)
	if err != nil {
		abortWithBadRequest(c, "invalid round")
		return
	}

	settlement, err := h.svc.GetSettlement(c.Request.Context(), round)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSettlementResponse(*settlement))
}

func (h *handler) getBalance(c *gin.Context) {
	account := c.Param("account")
	balance, err := h.svc.GetBalance(c.Request.Context(), account)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, balanceResponse{account, balance})
}

func (h *handler) streamEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	// nolint:all
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := h.svc.SubscribeEvents(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to subscribe to raffle events")
		return
	}

	// The stream is write-only, reading only detects the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				// nolint:all
				conn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				)
				return
			}
			// nolint:all
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(eventMessage{
				Type:  event.GetType(),
				Round: event.GetRound(),
				Event: event,
			}); err != nil {
				log.WithError(err).Debug("closing event stream")
				return
			}
		}
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
