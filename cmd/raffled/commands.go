package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ark-network/raffle/internal/config"
	"github.com/urfave/cli/v2"
)

// flags
var (
	participantFlag = &cli.StringFlag{
		Name:     "participant",
		Usage:    "the address entering the raffle",
		Required: true,
	}
	amountFlag = &cli.StringFlag{
		Name:  "amount",
		Usage: "the amount paid to enter, defaults to the entrance fee",
	}
	dataFlag = &cli.StringFlag{
		Name:  "data",
		Usage: "opaque hex encoded data forwarded to the upkeep",
	}
	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "max number of settlements to list, 0 for all",
	}
	roundFlag = &cli.Uint64Flag{
		Name:  "round",
		Usage: "the round of the settlement to show",
	}
	accountFlag = &cli.StringFlag{
		Name:     "account",
		Usage:    "the account to get the ledger balance of",
		Required: true,
	}
	requestIdFlag = &cli.StringFlag{
		Name:     "request-id",
		Usage:    "the pending entropy request to fulfill",
		Required: true,
	}
)

// commands
var (
	infoCmd = &cli.Command{
		Name:   "info",
		Usage:  "Get info about the current round",
		Action: infoAction,
	}
	enterCmd = &cli.Command{
		Name:   "enter",
		Usage:  "Enter the current round",
		Action: enterAction,
		Flags:  []cli.Flag{participantFlag, amountFlag},
	}
	participantsCmd = &cli.Command{
		Name:   "participants",
		Usage:  "List the participants of the current round",
		Action: participantsAction,
	}
	upkeepCmd = &cli.Command{
		Name:  "upkeep",
		Usage: "Check or perform the settlement upkeep",
		Subcommands: append(
			cli.Commands{},
			upkeepCheckCmd,
			upkeepPerformCmd,
		),
	}
	upkeepCheckCmd = &cli.Command{
		Name:   "check",
		Usage:  "Tell whether the current round is ready to settle",
		Action: upkeepCheckAction,
		Flags:  []cli.Flag{dataFlag},
	}
	upkeepPerformCmd = &cli.Command{
		Name:   "perform",
		Usage:  "Start settling the current round",
		Action: upkeepPerformAction,
		Flags:  []cli.Flag{dataFlag},
	}
	settlementsCmd = &cli.Command{
		Name:   "settlements",
		Usage:  "List past settlements, most recent first",
		Action: settlementsAction,
		Flags:  []cli.Flag{limitFlag, roundFlag},
	}
	balanceCmd = &cli.Command{
		Name:   "balance",
		Usage:  "Get the prizes paid out to an account",
		Action: balanceAction,
		Flags:  []cli.Flag{accountFlag},
	}
	reopenCmd = &cli.Command{
		Name:   "reopen",
		Usage:  "Reopen a round whose settlement has stalled",
		Action: reopenAction,
	}
	fulfillCmd = &cli.Command{
		Name:   "fulfill",
		Usage:  "Fulfill a pending entropy request (mock entropy only)",
		Action: fulfillAction,
		Flags:  []cli.Flag{requestIdFlag},
	}
)

type info struct {
	Round               uint64 `json:"round"`
	State               string `json:"state"`
	EntranceFee         uint64 `json:"entrance_fee"`
	SettlementInterval  int64  `json:"settlement_interval"`
	OverpaymentPolicy   string `json:"overpayment_policy"`
	Participants        int    `json:"participants"`
	PooledBalance       uint64 `json:"pooled_balance"`
	RoundOpenedAt       int64  `json:"round_opened_at"`
	PendingRequestId    string `json:"pending_request_id"`
	SettlementStartedAt int64  `json:"settlement_started_at"`
	LastWinner          string `json:"last_winner"`
	LastSettledAt       int64  `json:"last_settled_at"`
	ReadyToSettle       bool   `json:"ready_to_settle"`
}

type settlement struct {
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

func (s settlement) toMap() map[string]interface{} {
	return map[string]interface{}{
		"round":        s.Round,
		"request_id":   s.RequestId,
		"winner":       s.Winner,
		"winner_index": s.WinnerIndex,
		"prize":        config.FormatAmount(s.Prize),
		"random_value": s.RandomValue,
		"participants": s.Participants,
		"started_at":   formatTime(s.StartedAt),
		"settled_at":   formatTime(s.SettledAt),
	}
}

func infoAction(ctx *cli.Context) error {
	baseURL, tlsCertPath := serverFlags(ctx)

	url := fmt.Sprintf("%s/v1/info", baseURL)
	res, err := get[info](url, "", tlsCertPath)
	if err != nil {
		return err
	}

	resp := map[string]interface{}{
		"round":               res.Round,
		"state":               res.State,
		"entrance_fee":        config.FormatAmount(res.EntranceFee),
		"settlement_interval": res.SettlementInterval,
		"overpayment_policy":  res.OverpaymentPolicy,
		"participants":        res.Participants,
		"pooled_balance":      config.FormatAmount(res.PooledBalance),
		"round_opened_at":     formatTime(res.RoundOpenedAt),
		"last_winner":         res.LastWinner,
		"ready_to_settle":     res.ReadyToSettle,
	}
	if len(res.PendingRequestId) > 0 {
		resp["pending_request_id"] = res.PendingRequestId
		resp["settlement_started_at"] = formatTime(res.SettlementStartedAt)
	}
	if res.LastSettledAt > 0 {
		resp["last_settled_at"] = formatTime(res.LastSettledAt)
	}
	return printJSON(resp)
}

func enterAction(ctx *cli.Context) error {
	baseURL, tlsCertPath := serverFlags(ctx)

	var amount uint64
	if a := ctx.String(amountFlag.Name); len(a) > 0 {
		parsed, err := config.ParseAmount(a)
		if err != nil {
			return fmt.Errorf("invalid amount: %s", err)
		}
		amount = parsed
	} else {
		url := fmt.Sprintf("%s/v1/fee", baseURL)
		fee, err := get[uint64](url, "entrance_fee", tlsCertPath)
		if err != nil {
			return err
		}
		amount = fee
	}

	body, err := json.Marshal(map[string]interface{}{
		"participant": ctx.String(participantFlag.Name),
		"amount":      amount,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/enter", baseURL)
	count, err := post[int](url, string(body), "participants", tlsCertPath)
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"amount":       config.FormatAmount(amount),
		"participants": count,
	})
}

func participantsAction(ctx *cli.Context) error {
	baseURL, tlsCertPath := serverFlags(ctx)

	url := fmt.Sprintf("%s/v1/participants", baseURL)
	participants, err := get[[]string](url, "participants", tlsCertPath)
	if err != nil {
		return err
	}
	return printJSON(participants)
}

func upkeepCheckAction(ctx *cli.Context) error {
	baseURL, tlsCertPath := serverFlags(ctx)

	url := fmt.Sprintf("%s/v1/upkeep?check_data=%s", baseURL, ctx.String(dataFlag.Name))
	res, err := get[map[string]interface{}](url, "", tlsCertPath)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func upkeepPerformAction(ctx *cli.Context) error {
	baseURL, tlsCertPath := serverFlags(ctx)

	body, err := json.Marshal(map[string]string{
		"perform_data": ctx.String(dataFlag.Name),
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/upkeep", baseURL)
	if _, err := post[struct{}](url, string(body), "", tlsCertPath); err != nil {
		return err
	}

	fmt.Println("settlement started")
	return nil
}

func settlementsAction(ctx *cli.Context) error {
	baseURL, tlsCertPath := serverFlags(ctx)

	if round := ctx.Uint64(roundFlag.Name); round > 0 {
		url := fmt.Sprintf("%s/v1/settlements/%d", baseURL, round)
		res, err := get[settlement](url, "", tlsCertPath)
		if err != nil {
			return err
		}
		return printJSON(res.toMap())
	}

	url := fmt.Sprintf("%s/v1/settlements?limit=%d", baseURL, ctx.Int(limitFlag.Name))
	settlements, err := get[[]settlement](url, "settlements", tlsCertPath)
	if err != nil {
		return err
	}

	resp := make([]map[string]interface{}, 0, len(settlements))
	for _, s := range settlements {
		resp = append(resp, s.toMap())
	}
	return printJSON(resp)
}

func balanceAction(ctx *cli.Context) error {
	baseURL, tlsCertPath := serverFlags(ctx)

	url := fmt.Sprintf("%s/v1/ledger/%s", baseURL, ctx.String(accountFlag.Name))
	balance, err := get[uint64](url, "balance", tlsCertPath)
	if err != nil {
		return err
	}

	fmt.Println(config.FormatAmount(balance))
	return nil
}

func reopenAction(ctx *cli.Context) error {
	baseURL, tlsCertPath := serverFlags(ctx)

	url := fmt.Sprintf("%s/v1/admin/reopen", baseURL)
	if _, err := post[struct{}](url, "", "", tlsCertPath); err != nil {
		return err
	}

	fmt.Println("round reopened")
	return nil
}

func fulfillAction(ctx *cli.Context) error {
	baseURL, tlsCertPath := serverFlags(ctx)

	url := fmt.Sprintf(
		"%s/v1/admin/entropy/%s/fulfill", baseURL, ctx.String(requestIdFlag.Name),
	)
	if _, err := post[struct{}](url, "", "", tlsCertPath); err != nil {
		return err
	}

	fmt.Println("request fulfilled")
	return nil
}

func serverFlags(ctx *cli.Context) (string, string) {
	baseURL := strings.TrimSuffix(ctx.String(urlFlag.Name), "/")
	tlsCertPath := ctx.String(tlsCertFlag.Name)
	if strings.Contains(baseURL, "http://") {
		tlsCertPath = ""
	}
	return baseURL, tlsCertPath
}

func post[T any](url, body, key, tlsCert string) (T, error) {
	return do[T](http.MethodPost, url, body, key, tlsCert)
}

func get[T any](url, key, tlsCert string) (T, error) {
	return do[T](http.MethodGet, url, "", key, tlsCert)
}

// do sends the request and decodes either the whole response or, if key is
// set, only the given field of it.
func do[T any](method, url, body, key, tlsCert string) (result T, err error) {
	tlsConfig, err := getTLSConfig(tlsCert)
	if err != nil {
		return
	}
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Add("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("failed to %s: %s", strings.ToLower(method), string(buf))
		return
	}

	if len(key) <= 0 {
		err = json.Unmarshal(buf, &result)
		return
	}

	res := make(map[string]json.RawMessage)
	if err = json.Unmarshal(buf, &res); err != nil {
		return
	}
	value, ok := res[key]
	if !ok {
		err = fmt.Errorf("missing %s in response", key)
		return
	}
	err = json.Unmarshal(value, &result)
	return
}

func getTLSConfig(path string) (*tls.Config, error) {
	if len(path) <= 0 {
		return nil, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(buf); !ok {
		return nil, fmt.Errorf("failed to parse tls cert")
	}

	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    caCertPool,
	}, nil
}

func printJSON(resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}

func formatTime(unix int64) string {
	if unix <= 0 {
		return ""
	}
	return time.Unix(unix, 0).Format(time.RFC3339)
}
