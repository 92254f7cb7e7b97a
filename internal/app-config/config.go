package appconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/ark-network/raffle/internal/core/application"
	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/ark-network/raffle/internal/core/ports"
	"github.com/ark-network/raffle/internal/infrastructure/db"
	"github.com/ark-network/raffle/internal/infrastructure/entropy/beacon"
	mockentropy "github.com/ark-network/raffle/internal/infrastructure/entropy/mock"
	watermillbus "github.com/ark-network/raffle/internal/infrastructure/events/watermill"
	badgerledger "github.com/ark-network/raffle/internal/infrastructure/ledger/badger"
	inmemoryledger "github.com/ark-network/raffle/internal/infrastructure/ledger/inmemory"
	inmemorylivestore "github.com/ark-network/raffle/internal/infrastructure/live-store/inmemory"
	redislivestore "github.com/ark-network/raffle/internal/infrastructure/live-store/redis"
	natsnotifier "github.com/ark-network/raffle/internal/infrastructure/notifier/nats"
	scheduler "github.com/ark-network/raffle/internal/infrastructure/scheduler/gocron"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const liveStoreRetries = 5

var (
	supportedEventDbs = supportedType{
		"badger": {},
	}
	supportedDbs = supportedType{
		"badger":   {},
		"sqlite":   {},
		"postgres": {},
	}
	supportedLiveStores = supportedType{
		"inmemory": {},
		"redis":    {},
	}
	supportedSchedulers = supportedType{
		"gocron": {},
	}
	supportedEntropySources = supportedType{
		"beacon": {},
		"mock":   {},
	}
	supportedLedgers = supportedType{
		"inmemory": {},
		"badger":   {},
	}
	supportedOverpaymentPolicies = map[string]domain.OverpaymentPolicy{
		domain.RetainExcess.String(): domain.RetainExcess,
		domain.RejectExcess.String(): domain.RejectExcess,
	}
)

type Config struct {
	EventDbType   string
	DbType        string
	DbDir         string
	EventDbDir    string
	LiveStoreType string
	RedisUrl      string
	PostgresUrl   string
	SchedulerType string
	LedgerType    string
	LedgerDir     string

	EntranceFee        uint64
	SettlementInterval int64
	UpkeepInterval     int64
	OverpaymentPolicy  string
	SettlementTimeout  int64

	EntropyType          string
	EntropyDelay         int64
	EntropySeed          string
	GasLane              string
	SubscriptionId       uint64
	CallbackGasLimit     uint32
	RequestConfirmations uint16

	RejectingAccounts []string
	NatsUrl           string
	NatsSubject       string

	repo      ports.RepoManager
	liveStore ports.LiveStore
	scheduler ports.SchedulerService
	entropy   ports.EntropySource
	ledger    ports.Ledger
	eventBus  ports.EventBus
	notifier  ports.Notifier
	svc       application.Service
}

func (c *Config) Validate() error {
	if !supportedEventDbs.supports(c.EventDbType) {
		return fmt.Errorf("event db type not supported, please select one of: %s", supportedEventDbs)
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedLiveStores.supports(c.LiveStoreType) {
		return fmt.Errorf("live store type not supported, please select one of: %s", supportedLiveStores)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fmt.Errorf("scheduler type not supported, please select one of: %s", supportedSchedulers)
	}
	if !supportedEntropySources.supports(c.EntropyType) {
		return fmt.Errorf("entropy type not supported, please select one of: %s", supportedEntropySources)
	}
	if !supportedLedgers.supports(c.LedgerType) {
		return fmt.Errorf("ledger type not supported, please select one of: %s", supportedLedgers)
	}
	if _, ok := supportedOverpaymentPolicies[c.OverpaymentPolicy]; !ok {
		return fmt.Errorf("overpayment policy not supported, please select one of: retain | reject")
	}
	if c.EntranceFee <= 0 {
		return fmt.Errorf("invalid entrance fee, must be greater than zero")
	}
	for _, account := range c.RejectingAccounts {
		if !common.IsHexAddress(account) {
			return fmt.Errorf("invalid rejecting account %s", account)
		}
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.liveStoreService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.entropyService(); err != nil {
		return err
	}
	if err := c.ledgerService(); err != nil {
		return err
	}
	if err := c.eventBusService(); err != nil {
		return err
	}
	if err := c.notifierService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

// ManualEntropy reports whether pending entropy requests are fulfilled on
// demand.
func (c *Config) ManualEntropy() bool {
	_, ok := c.entropy.(ports.ManualEntropySource)
	return ok
}

func (c *Config) repoManager() error {
	var svc ports.RepoManager
	var err error
	var eventStoreConfig []interface{}
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.EventDbType {
	case "badger":
		eventStoreConfig = []interface{}{c.EventDbDir, logger}
	default:
		return fmt.Errorf("unknown event db type")
	}

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	case "postgres":
		dataStoreConfig = []interface{}{c.PostgresUrl}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err = db.NewService(db.ServiceConfig{
		EventStoreType:   c.EventDbType,
		DataStoreType:    c.DbType,
		EventStoreConfig: eventStoreConfig,
		DataStoreConfig:  dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) liveStoreService() error {
	switch c.LiveStoreType {
	case "inmemory":
		c.liveStore = inmemorylivestore.NewLiveStore()
	case "redis":
		redisOpts, err := redis.ParseURL(c.RedisUrl)
		if err != nil {
			return fmt.Errorf("invalid redis url: %s", err)
		}
		rdb := redis.NewClient(redisOpts)
		c.liveStore = redislivestore.NewLiveStore(rdb, liveStoreRetries)
	default:
		return fmt.Errorf("unknown live store type")
	}
	return nil
}

func (c *Config) schedulerService() error {
	switch c.SchedulerType {
	case "gocron":
		c.scheduler = scheduler.NewScheduler()
	default:
		return fmt.Errorf("unknown scheduler type")
	}
	return nil
}

func (c *Config) entropyService() error {
	switch c.EntropyType {
	case "beacon":
		svc, err := beacon.NewService(
			time.Duration(c.EntropyDelay)*time.Second, c.EntropySeed,
		)
		if err != nil {
			return err
		}
		c.entropy = svc
	case "mock":
		c.entropy = mockentropy.NewService()
	default:
		return fmt.Errorf("unknown entropy type")
	}
	return nil
}

func (c *Config) ledgerService() error {
	rejecting := make([]string, 0, len(c.RejectingAccounts))
	for _, account := range c.RejectingAccounts {
		rejecting = append(rejecting, common.HexToAddress(account).Hex())
	}

	switch c.LedgerType {
	case "inmemory":
		c.ledger = inmemoryledger.NewLedger(rejecting...)
	case "badger":
		svc, err := badgerledger.NewLedger(c.LedgerDir, log.New(), rejecting...)
		if err != nil {
			return err
		}
		c.ledger = svc
	default:
		return fmt.Errorf("unknown ledger type")
	}
	return nil
}

func (c *Config) eventBusService() error {
	c.eventBus = watermillbus.NewEventBus()
	return nil
}

func (c *Config) notifierService() error {
	if len(c.NatsUrl) <= 0 {
		return nil
	}

	svc, err := natsnotifier.NewNotifier(c.NatsUrl, c.NatsSubject)
	if err != nil {
		return err
	}
	c.notifier = svc
	return nil
}

func (c *Config) appService() error {
	if c.repo == nil {
		return fmt.Errorf("config not validated")
	}

	svc, err := application.NewService(
		application.Config{
			EntranceFee:        c.EntranceFee,
			SettlementInterval: c.SettlementInterval,
			Overpayment:        supportedOverpaymentPolicies[c.OverpaymentPolicy],
			UpkeepInterval:     c.UpkeepInterval,
			SettlementTimeout:  c.SettlementTimeout,
			RequestParams: ports.RequestParams{
				KeyHash:              c.GasLane,
				SubscriptionId:       c.SubscriptionId,
				CallbackGasLimit:     c.CallbackGasLimit,
				RequestConfirmations: c.RequestConfirmations,
				NumWords:             1,
			},
		},
		c.repo, c.liveStore, c.scheduler, c.entropy, c.ledger, c.eventBus, c.notifier,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
