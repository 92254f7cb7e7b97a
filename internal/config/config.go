package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Amounts are configured in coins and handled in base units.
const AmountDecimals = 8

type Config struct {
	Datadir         string
	Port            uint32
	NoTLS           bool
	LogLevel        int
	TLSExtraIPs     []string
	TLSExtraDomains []string

	EntranceFee        uint64
	SettlementInterval int64
	UpkeepInterval     int64
	OverpaymentPolicy  string
	SettlementTimeout  int64

	EventDbType   string
	DbType        string
	DbDir         string
	EventDbDir    string
	LiveStoreType string
	RedisUrl      string
	PostgresUrl   string
	SchedulerType string

	EntropyType          string
	EntropyDelay         int64
	EntropySeed          string
	GasLane              string
	SubscriptionId       uint64
	CallbackGasLimit     uint32
	RequestConfirmations uint16

	LedgerType        string
	RejectingAccounts []string

	NatsUrl     string
	NatsSubject string
}

var (
	Datadir              = "DATADIR"
	Port                 = "PORT"
	NoTLS                = "NO_TLS"
	TLSExtraIP           = "TLS_EXTRA_IP"
	TLSExtraDomain       = "TLS_EXTRA_DOMAIN"
	LogLevel             = "LOG_LEVEL"
	EntranceFee          = "ENTRANCE_FEE"
	SettlementInterval   = "SETTLEMENT_INTERVAL"
	UpkeepPollInterval   = "UPKEEP_POLL_INTERVAL"
	OverpaymentPolicy    = "OVERPAYMENT_POLICY"
	SettlementTimeout    = "SETTLEMENT_TIMEOUT"
	EventDbType          = "EVENT_DB_TYPE"
	DbType               = "DB_TYPE"
	LiveStoreType        = "LIVE_STORE_TYPE"
	RedisUrl             = "REDIS_URL"
	PostgresUrl          = "POSTGRES_URL"
	SchedulerType        = "SCHEDULER_TYPE"
	EntropyType          = "ENTROPY_TYPE"
	EntropyDelay         = "ENTROPY_DELAY"
	EntropySeed          = "ENTROPY_SEED"
	GasLane              = "GAS_LANE"
	SubscriptionId       = "SUBSCRIPTION_ID"
	CallbackGasLimit     = "CALLBACK_GAS_LIMIT"
	RequestConfirmations = "REQUEST_CONFIRMATIONS"
	LedgerType           = "LEDGER_TYPE"
	RejectingAccounts    = "REJECTING_ACCOUNTS"
	NatsUrl              = "NATS_URL"
	NatsSubject          = "NATS_SUBJECT"

	DefaultDatadir              = appDataDir("raffled")
	DefaultPort                 = 7070
	defaultNoTLS                = true
	defaultLogLevel             = 4
	defaultEntranceFee          = "0.001"
	defaultSettlementInterval   = 30
	defaultUpkeepPollInterval   = 5
	defaultOverpaymentPolicy    = "retain"
	defaultSettlementTimeout    = 0
	defaultEventDbType          = "badger"
	defaultDbType               = "sqlite"
	defaultLiveStoreType        = "inmemory"
	defaultSchedulerType        = "gocron"
	defaultEntropyType          = "beacon"
	defaultEntropyDelay         = 2
	defaultGasLane              = "0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c"
	defaultCallbackGasLimit     = 500000
	defaultRequestConfirmations = 3
	defaultLedgerType           = "inmemory"
	defaultNatsSubject          = "raffle.events"

	configFileName = "raffle"
)

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RAFFLE")
	v.AutomaticEnv()

	v.SetDefault(Datadir, DefaultDatadir)
	v.SetDefault(Port, DefaultPort)
	v.SetDefault(NoTLS, defaultNoTLS)
	v.SetDefault(LogLevel, defaultLogLevel)
	v.SetDefault(EntranceFee, defaultEntranceFee)
	v.SetDefault(SettlementInterval, defaultSettlementInterval)
	v.SetDefault(UpkeepPollInterval, defaultUpkeepPollInterval)
	v.SetDefault(OverpaymentPolicy, defaultOverpaymentPolicy)
	v.SetDefault(SettlementTimeout, defaultSettlementTimeout)
	v.SetDefault(EventDbType, defaultEventDbType)
	v.SetDefault(DbType, defaultDbType)
	v.SetDefault(LiveStoreType, defaultLiveStoreType)
	v.SetDefault(SchedulerType, defaultSchedulerType)
	v.SetDefault(EntropyType, defaultEntropyType)
	v.SetDefault(EntropyDelay, defaultEntropyDelay)
	v.SetDefault(GasLane, defaultGasLane)
	v.SetDefault(CallbackGasLimit, defaultCallbackGasLimit)
	v.SetDefault(RequestConfirmations, defaultRequestConfirmations)
	v.SetDefault(LedgerType, defaultLedgerType)
	v.SetDefault(NatsSubject, defaultNatsSubject)

	if err := initDatadir(v); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	v.SetConfigName(configFileName)
	v.AddConfigPath(v.GetString(Datadir))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error while reading config file: %s", err)
		}
	}

	entranceFee, err := ParseAmount(v.GetString(EntranceFee))
	if err != nil {
		return nil, fmt.Errorf("invalid entrance fee: %s", err)
	}

	dbPath := filepath.Join(v.GetString(Datadir), "db")

	cfg := &Config{
		Datadir:              v.GetString(Datadir),
		Port:                 v.GetUint32(Port),
		NoTLS:                v.GetBool(NoTLS),
		LogLevel:             v.GetInt(LogLevel),
		TLSExtraIPs:          v.GetStringSlice(TLSExtraIP),
		TLSExtraDomains:      v.GetStringSlice(TLSExtraDomain),
		EntranceFee:          entranceFee,
		SettlementInterval:   v.GetInt64(SettlementInterval),
		UpkeepInterval:       v.GetInt64(UpkeepPollInterval),
		OverpaymentPolicy:    strings.ToLower(v.GetString(OverpaymentPolicy)),
		SettlementTimeout:    v.GetInt64(SettlementTimeout),
		EventDbType:          v.GetString(EventDbType),
		DbType:               v.GetString(DbType),
		DbDir:                dbPath,
		EventDbDir:           dbPath,
		LiveStoreType:        v.GetString(LiveStoreType),
		RedisUrl:             v.GetString(RedisUrl),
		PostgresUrl:          v.GetString(PostgresUrl),
		SchedulerType:        v.GetString(SchedulerType),
		EntropyType:          v.GetString(EntropyType),
		EntropyDelay:         v.GetInt64(EntropyDelay),
		EntropySeed:          v.GetString(EntropySeed),
		GasLane:              v.GetString(GasLane),
		SubscriptionId:       v.GetUint64(SubscriptionId),
		CallbackGasLimit:     v.GetUint32(CallbackGasLimit),
		RequestConfirmations: v.GetUint16(RequestConfirmations),
		LedgerType:           v.GetString(LedgerType),
		RejectingAccounts:    splitList(v.GetStringSlice(RejectingAccounts)),
		NatsUrl:              v.GetString(NatsUrl),
		NatsSubject:          v.GetString(NatsSubject),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SettlementInterval < 0 {
		return fmt.Errorf("invalid settlement interval, must not be negative")
	}
	if c.UpkeepInterval <= 0 {
		return fmt.Errorf("invalid upkeep poll interval, must be at least 1 second")
	}
	if c.SettlementTimeout < 0 {
		return fmt.Errorf("invalid settlement timeout, must not be negative")
	}
	if c.EntropyDelay <= 0 {
		return fmt.Errorf("invalid entropy delay, must be at least 1 second")
	}
	if c.DbType == "postgres" && len(c.PostgresUrl) <= 0 {
		return fmt.Errorf("missing postgres url, postgres db requires RAFFLE_POSTGRES_URL to be set")
	}
	if c.LiveStoreType == "redis" && len(c.RedisUrl) <= 0 {
		return fmt.Errorf("missing redis url, redis live store requires RAFFLE_REDIS_URL to be set")
	}
	return nil
}

// ParseAmount converts an amount in coins into base units.
func ParseAmount(amount string) (uint64, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, err
	}
	if !value.IsPositive() {
		return 0, fmt.Errorf("amount must be greater than zero")
	}

	units := value.Shift(AmountDecimals)
	if !units.IsInteger() {
		return 0, fmt.Errorf("amount must have at most %d decimals", AmountDecimals)
	}
	if !units.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount too large")
	}
	return units.BigInt().Uint64(), nil
}

// FormatAmount converts an amount in base units into coins.
func FormatAmount(units uint64) string {
	return decimal.NewFromBigInt(
		new(big.Int).SetUint64(units), -AmountDecimals,
	).String()
}

func initDatadir(v *viper.Viper) error {
	datadir := v.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated one.
func splitList(values []string) []string {
	list := make([]string, 0, len(values))
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); len(item) > 0 {
				list = append(list, item)
			}
		}
	}
	return list
}

func appDataDir(appName string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(homeDir, "."+appName)
}
