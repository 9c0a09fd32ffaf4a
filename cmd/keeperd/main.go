package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	keeper "github.com/keeperd/keeper"
	"github.com/keeperd/keeper/journal"
	"github.com/keeperd/keeper/x/cash"
	"github.com/keeperd/keeper/x/cash/eth"
	"github.com/keeperd/keeper/x/escrow"
	"github.com/keeperd/keeper/x/sigs"
)

func main() {
	configFl := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	if err := run(log, *configFl); err != nil {
		log.Error("daemon failed", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, configPath string) error {
	conf, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	admin, err := conf.AdminAddress()
	if err != nil {
		return err
	}
	policy, err := conf.cancelPolicy()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		bank    cash.CoinMover
		pingers []pinger
	)
	switch conf.Rail.Mode {
	case "erc20":
		mover, err := eth.NewMover(ctx, eth.Config{
			RPCURL:        conf.Rail.RPCURL,
			Token:         conf.Rail.Token,
			PrivateKeyHex: conf.Rail.PrivateKey,
		})
		if err != nil {
			return err
		}
		bank = mover
		pingers = append(pingers, mover)
		log.Info("using erc20 rail", "token", conf.Rail.Token)
	default:
		bank = cash.NewController()
		log.Info("using in-memory rail")
	}

	// The recorder backs the events API; the Postgres journal, when
	// configured, keeps the durable audit trail.
	recorder := journal.NewRecorder()
	emitter := escrow.Emitter(recorder)
	if conf.PostgresDSN != "" {
		pg, err := journal.NewPostgres(ctx, conf.PostgresDSN, log)
		if err != nil {
			return err
		}
		defer pg.Close()
		pingers = append(pingers, pg)
		emitter = journal.Multi(recorder, pg)
		log.Info("journaling events to postgres")
	}

	ledger, err := escrow.NewLedger(sigs.Auth{}, bank, keeper.UTCClock{}, admin, conf.FeePercent,
		escrow.WithEmitter(emitter),
		escrow.WithCancelPolicy(policy),
	)
	if err != nil {
		return err
	}

	verifier := &sigs.Verifier{
		Secret:  conf.HMACSecret,
		MaxSkew: conf.HMACMaxSkew,
	}
	if conf.HMACSecret == "" {
		log.Warn("request signing disabled, trusting caller headers")
	}

	srv := NewServer(ledger, bank, recorder, log, newMetrics(), pingers...)
	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           verifier.Middleware(srv),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", conf.Listen)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
