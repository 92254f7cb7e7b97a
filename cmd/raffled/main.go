package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	appconfig "github.com/ark-network/raffle/internal/app-config"
	"github.com/ark-network/raffle/internal/config"
	httpservice "github.com/ark-network/raffle/internal/interface/http"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

//nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// flags
var (
	urlFlag = &cli.StringFlag{
		Name:  "url",
		Usage: "the url where to reach the raffle server",
		Value: fmt.Sprintf("http://localhost:%d", config.DefaultPort),
	}
	tlsCertFlag = &cli.StringFlag{
		Name:  "tls-cert-path",
		Usage: "the path of the TLS certificate file to use",
		Value: filepath.Join(config.DefaultDatadir, "tls", "cert.pem"),
	}
)

func mainAction(_ *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	svcConfig := httpservice.Config{
		Datadir:         cfg.Datadir,
		Port:            cfg.Port,
		NoTLS:           cfg.NoTLS,
		TLSExtraIPs:     cfg.TLSExtraIPs,
		TLSExtraDomains: cfg.TLSExtraDomains,
	}

	appConfig := &appconfig.Config{
		EventDbType:          cfg.EventDbType,
		DbType:               cfg.DbType,
		DbDir:                cfg.DbDir,
		EventDbDir:           cfg.EventDbDir,
		LiveStoreType:        cfg.LiveStoreType,
		RedisUrl:             cfg.RedisUrl,
		PostgresUrl:          cfg.PostgresUrl,
		SchedulerType:        cfg.SchedulerType,
		LedgerType:           cfg.LedgerType,
		LedgerDir:            cfg.DbDir,
		EntranceFee:          cfg.EntranceFee,
		SettlementInterval:   cfg.SettlementInterval,
		UpkeepInterval:       cfg.UpkeepInterval,
		OverpaymentPolicy:    cfg.OverpaymentPolicy,
		SettlementTimeout:    cfg.SettlementTimeout,
		EntropyType:          cfg.EntropyType,
		EntropyDelay:         cfg.EntropyDelay,
		EntropySeed:          cfg.EntropySeed,
		GasLane:              cfg.GasLane,
		SubscriptionId:       cfg.SubscriptionId,
		CallbackGasLimit:     cfg.CallbackGasLimit,
		RequestConfirmations: cfg.RequestConfirmations,
		RejectingAccounts:    cfg.RejectingAccounts,
		NatsUrl:              cfg.NatsUrl,
		NatsSubject:          cfg.NatsSubject,
	}

	svc, err := httpservice.NewService(svcConfig, appConfig)
	if err != nil {
		return err
	}

	log.RegisterExitHandler(svc.Stop)

	log.Infof("starting raffle server %s (%s, %s)...", version, commit, date)
	if err := svc.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)

	return nil
}

func main() {
	app := cli.NewApp()
	app.Version = version
	app.Name = "raffled"
	app.Usage = "run or manage the raffle server"
	app.UsageText = "Run the raffle server with:\n\traffled\nManage the raffle server with:\n\traffled [global options] command [command options]"
	app.Commands = append(
		app.Commands,
		infoCmd,
		enterCmd,
		participantsCmd,
		upkeepCmd,
		settlementsCmd,
		balanceCmd,
		reopenCmd,
		fulfillCmd,
	)
	app.Action = mainAction
	app.Flags = append(app.Flags, urlFlag, tlsCertFlag)

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
