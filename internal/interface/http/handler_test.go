package httpservice_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ark-network/raffle/internal/core/application"
	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/ark-network/raffle/internal/core/ports"
	httpservice "github.com/ark-network/raffle/internal/interface/http"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0x00000000000000000000000000000000000A11cE"
	bob   = "0x0000000000000000000000000000000000000B0b"
)

func doRequest(
	t *testing.T, h http.Handler, method, path string, body interface{},
) (int, map[string]interface{}) {
	var reqBody *bytes.Buffer
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(buf)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := map[string]interface{}{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func TestHandlerQueries(t *testing.T) {
	svc := &mockedService{}
	svc.On("GetInfo", mock.Anything).Return(&application.RaffleInfo{
		Round:              3,
		State:              domain.Settling,
		EntranceFee:        1000,
		SettlementInterval: 30,
		OverpaymentPolicy:  "retain",
		Participants:       2,
		PooledBalance:      2000,
		RoundOpenedAt:      1700000000,
		PendingRequestId:   "7",
		LastWinner:         bob,
	}, nil)
	svc.On("GetState", mock.Anything).Return(domain.Open, nil)
	svc.On("GetEntranceFee", mock.Anything).Return(uint64(1000))
	svc.On("GetSettlementInterval", mock.Anything).Return(int64(30))
	svc.On("GetPooledBalance", mock.Anything).Return(uint64(2000), nil)
	svc.On("GetRoundOpenedAt", mock.Anything).Return(int64(1700000000), nil)
	svc.On("GetLastWinner", mock.Anything).Return("", nil)
	svc.On("GetParticipants", mock.Anything).Return([]string{alice, bob}, nil)
	svc.On("GetParticipant", mock.Anything, 1).Return(bob, nil)
	svc.On("GetParticipant", mock.Anything, 5).Return("", domain.ErrParticipantNotFound)
	svc.On("GetBalance", mock.Anything, alice).Return(uint64(3000), nil)

	h := httpservice.NewHandler(svc, false)

	code, resp := doRequest(t, h, http.MethodGet, "/v1/info", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "SETTLING", resp["state"])
	require.Equal(t, float64(1), resp["state_code"])
	require.Equal(t, float64(3), resp["round"])
	require.Equal(t, "7", resp["pending_request_id"])
	require.Equal(t, bob, resp["last_winner"])

	code, resp = doRequest(t, h, http.MethodGet, "/v1/state", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "OPEN", resp["state"])
	require.Equal(t, float64(0), resp["state_code"])

	code, resp = doRequest(t, h, http.MethodGet, "/v1/fee", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(1000), resp["entrance_fee"])

	code, resp = doRequest(t, h, http.MethodGet, "/v1/interval", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(30), resp["settlement_interval"])

	code, resp = doRequest(t, h, http.MethodGet, "/v1/balance", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(2000), resp["pooled_balance"])

	code, resp = doRequest(t, h, http.MethodGet, "/v1/opened-at", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(1700000000), resp["round_opened_at"])

	code, resp = doRequest(t, h, http.MethodGet, "/v1/last-winner", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "", resp["last_winner"])

	code, resp = doRequest(t, h, http.MethodGet, "/v1/participants", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(2), resp["count"])
	require.Equal(t, []interface{}{alice, bob}, resp["participants"])

	code, resp = doRequest(t, h, http.MethodGet, "/v1/participants/1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, bob, resp["participant"])

	code, _ = doRequest(t, h, http.MethodGet, "/v1/participants/5", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = doRequest(t, h, http.MethodGet, "/v1/participants/-1", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, resp = doRequest(t, h, http.MethodGet, "/v1/ledger/"+alice, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(3000), resp["balance"])

	code, _ = doRequest(t, h, http.MethodOptions, "/v1/enter", nil)
	require.Equal(t, http.StatusNoContent, code)
}

func TestHandlerEnter(t *testing.T) {
	fixtures := []struct {
		name         string
		body         interface{}
		err          error
		expectedCode int
	}{
		{"ok", map[string]interface{}{"participant": alice, "amount": 1000}, nil, http.StatusOK},
		{"insufficient payment", map[string]interface{}{"participant": alice, "amount": 10}, domain.ErrInsufficientPayment, http.StatusBadRequest},
		{"incorrect payment", map[string]interface{}{"participant": alice, "amount": 2000}, domain.ErrIncorrectPayment, http.StatusBadRequest},
		{"pool overflow", map[string]interface{}{"participant": alice, "amount": 5000}, domain.ErrPoolOverflow, http.StatusBadRequest},
		{"round not open", map[string]interface{}{"participant": alice, "amount": 1000}, domain.ErrRoundNotOpen, http.StatusConflict},
		{"invalid participant", map[string]interface{}{"participant": "alice", "amount": 1000}, domain.ErrInvalidParticipant, http.StatusBadRequest},
		{"internal", map[string]interface{}{"participant": alice, "amount": 1000}, fmt.Errorf("db down"), http.StatusInternalServerError},
	}

	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			body := f.body.(map[string]interface{})
			svc := &mockedService{}
			svc.On(
				"Enter", mock.Anything, body["participant"], uint64(body["amount"].(int)),
			).Return(1, f.err)

			code, resp := doRequest(t, httpservice.NewHandler(svc, false), http.MethodPost, "/v1/enter", f.body)
			require.Equal(t, f.expectedCode, code)
			if f.err == nil {
				require.Equal(t, float64(1), resp["participants"])
			} else {
				require.Equal(t, f.err.Error(), resp["error"])
			}
		})
	}

	t.Run("missing participant", func(t *testing.T) {
		svc := &mockedService{}
		code, _ := doRequest(
			t, httpservice.NewHandler(svc, false), http.MethodPost, "/v1/enter",
			map[string]interface{}{"amount": 1000},
		)
		require.Equal(t, http.StatusBadRequest, code)
		svc.AssertNotCalled(t, "Enter", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandlerUpkeep(t *testing.T) {
	t.Run("check", func(t *testing.T) {
		svc := &mockedService{}
		svc.On("IsReadyToSettle", mock.Anything, []byte{0xca, 0xfe}).
			Return(true, []byte{0xbe, 0xef})

		code, resp := doRequest(
			t, httpservice.NewHandler(svc, false), http.MethodGet, "/v1/upkeep?check_data=0xcafe", nil,
		)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, true, resp["upkeep_needed"])
		require.Equal(t, "beef", resp["perform_data"])
	})

	t.Run("check with invalid data", func(t *testing.T) {
		code, _ := doRequest(
			t, httpservice.NewHandler(&mockedService{}, false), http.MethodGet, "/v1/upkeep?check_data=zz", nil,
		)
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("perform", func(t *testing.T) {
		svc := &mockedService{}
		svc.On("InitiateSettlement", mock.Anything, []byte{}).Return(nil)

		code, _ := doRequest(
			t, httpservice.NewHandler(svc, false), http.MethodPost, "/v1/upkeep", nil,
		)
		require.Equal(t, http.StatusOK, code)
		svc.AssertExpectations(t)
	})

	t.Run("perform not needed", func(t *testing.T) {
		svc := &mockedService{}
		svc.On("InitiateSettlement", mock.Anything, []byte{0x01}).Return(
			&domain.UpkeepNotNeededError{Balance: 0, Participants: 0, State: domain.Open},
		)

		code, resp := doRequest(
			t, httpservice.NewHandler(svc, false), http.MethodPost, "/v1/upkeep",
			map[string]string{"perform_data": "01"},
		)
		require.Equal(t, http.StatusConflict, code)
		require.Equal(t, float64(0), resp["participants"])
		require.Equal(t, "OPEN", resp["state"])
	})

	t.Run("perform with payout failure", func(t *testing.T) {
		svc := &mockedService{}
		svc.On("InitiateSettlement", mock.Anything, []byte{}).Return(
			fmt.Errorf("%w: ledger unavailable", domain.ErrPayoutFailed),
		)

		code, _ := doRequest(
			t, httpservice.NewHandler(svc, false), http.MethodPost, "/v1/upkeep", nil,
		)
		require.Equal(t, http.StatusBadGateway, code)
	})
}

func TestHandlerAdmin(t *testing.T) {
	t.Run("reopen", func(t *testing.T) {
		svc := &mockedService{}
		svc.On("ReopenStalledSettlement", mock.Anything).Return(domain.ErrRecoveryDisabled).Once()
		svc.On("ReopenStalledSettlement", mock.Anything).Return(nil).Once()
		h := httpservice.NewHandler(svc, false)

		code, _ := doRequest(t, h, http.MethodPost, "/v1/admin/reopen", nil)
		require.Equal(t, http.StatusConflict, code)

		code, _ = doRequest(t, h, http.MethodPost, "/v1/admin/reopen", nil)
		require.Equal(t, http.StatusOK, code)
	})

	t.Run("fulfill with manual entropy", func(t *testing.T) {
		svc := &mockedService{}
		svc.On("FulfillPendingRequest", mock.Anything, "1").Return(nil)
		svc.On("FulfillPendingRequest", mock.Anything, "2").Return(ports.ErrNonexistentRequest)
		h := httpservice.NewHandler(svc, true)

		code, _ := doRequest(t, h, http.MethodPost, "/v1/admin/entropy/1/fulfill", nil)
		require.Equal(t, http.StatusOK, code)

		code, _ = doRequest(t, h, http.MethodPost, "/v1/admin/entropy/2/fulfill", nil)
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("fulfill without manual entropy", func(t *testing.T) {
		svc := &mockedService{}
		code, _ := doRequest(
			t, httpservice.NewHandler(svc, false), http.MethodPost, "/v1/admin/entropy/1/fulfill", nil,
		)
		require.Equal(t, http.StatusNotFound, code)
		svc.AssertNotCalled(t, "FulfillPendingRequest", mock.Anything, mock.Anything)
	})
}

func TestHandlerSettlements(t *testing.T) {
	settlements := []domain.Settlement{
		{Round: 2, RequestId: "2", Winner: bob, WinnerIndex: 1, Prize: 2000, RandomValue: "7"},
		{Round: 1, RequestId: "1", Winner: alice, WinnerIndex: 0, Prize: 1000, RandomValue: "4"},
	}
	svc := &mockedService{}
	svc.On("ListSettlements", mock.Anything, 0).Return(settlements, nil)
	svc.On("ListSettlements", mock.Anything, 1).Return(settlements[:1], nil)
	svc.On("GetSettlement", mock.Anything, uint64(1)).Return(&settlements[1], nil)
	svc.On("GetSettlement", mock.Anything, uint64(9)).Return(nil, domain.ErrSettlementNotFound)
	h := httpservice.NewHandler(svc, false)

	code, resp := doRequest(t, h, http.MethodGet, "/v1/settlements", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp["settlements"], 2)

	code, resp = doRequest(t, h, http.MethodGet, "/v1/settlements?limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp["settlements"], 1)

	code, _ = doRequest(t, h, http.MethodGet, "/v1/settlements?limit=x", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, resp = doRequest(t, h, http.MethodGet, "/v1/settlements/1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, alice, resp["winner"])
	require.Equal(t, "4", resp["random_value"])

	code, _ = doRequest(t, h, http.MethodGet, "/v1/settlements/9", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestHandlerEvents(t *testing.T) {
	ch := make(chan domain.Event, 1)
	svc := &mockedService{}
	svc.On("SubscribeEvents", mock.Anything).Return((<-chan domain.Event)(ch), nil)

	server := httptest.NewServer(httpservice.NewHandler(svc, false))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	// nolint:all
	defer conn.Close()

	ch <- domain.Entered{
		RaffleEvent:  domain.RaffleEvent{Round: 1, Type: domain.EventTypeEntered},
		Participant:  alice,
		Amount:       1000,
		Participants: 1,
	}

	msg := map[string]interface{}{}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "ENTERED", msg["type"])
	require.Equal(t, float64(1), msg["round"])
	event := msg["event"].(map[string]interface{})
	require.Equal(t, alice, event["Participant"])

	close(ch)
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}
