package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stake-plus/membership-dao/src/config"
	"github.com/stake-plus/membership-dao/src/dao"
	"github.com/stake-plus/membership-dao/src/dao/chain"
	"github.com/stake-plus/membership-dao/src/dao/targets"
	"github.com/stake-plus/membership-dao/src/data"
	"github.com/stake-plus/membership-dao/src/discord"
	"github.com/stake-plus/membership-dao/src/logging"
	"github.com/stake-plus/membership-dao/src/metrics"
	"github.com/stake-plus/membership-dao/src/webserver"
)

const eventStreamMaxLen = 10000

func main() {
	logging.ConfigureRuntime()
	metrics.RegisterMetrics()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger := chain.NewLedger(chain.SystemClock{})
	genesis, err := cfg.Genesis()
	if err != nil {
		log.Fatal().Err(err).Msg("genesis")
	}
	for addr, amount := range genesis {
		if err := ledger.Mint(addr, amount); err != nil {
			log.Fatal().Err(err).Str("account", addr.Hex()).Msg("genesis")
		}
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		log.Fatal().Err(err).Msg("engine options")
	}
	engine, err := dao.New(ledger, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("engine")
	}
	if err := deployTargets(ledger, cfg); err != nil {
		log.Fatal().Err(err).Msg("targets")
	}

	var archive *data.Archive
	if cfg.MySQLDSN != "" {
		db, err := data.ConnectMySQL(cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("db")
		}
		archive = data.NewArchive(db)
		if err := archive.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		engine.AddObserver(archive)
	} else {
		log.Warn().Msg("MYSQL_DSN not set, proposal history disabled")
	}

	if cfg.RedisURL == "" {
		log.Fatal().Msg("REDIS_URL is required for login challenges")
	}
	rdb, err := data.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	defer rdb.Close()
	engine.AddObserver(data.NewPublisher(rdb, eventStreamMaxLen))

	if cfg.DiscordToken != "" {
		session, err := discord.NewSession(cfg.DiscordToken)
		if err != nil {
			log.Fatal().Err(err).Msg("discord")
		}
		defer session.Close()
		engine.AddObserver(discord.NewNotifier(session, cfg.DiscordChannelID))
	}

	router := webserver.New(cfg, engine, archive, rdb)
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		var err error
		if cfg.TLSEnabled() {
			reloader, rerr := webserver.NewTLSReloader(cfg.TLSCertFile, cfg.TLSKeyFile)
			if rerr != nil {
				log.Fatal().Err(rerr).Msg("tls")
			}
			go func() {
				if err := reloader.Watch(ctx); err != nil {
					log.Error().Err(err).Msg("certificate watcher stopped")
				}
			}()
			httpSrv.TLSConfig = reloader.GetConfig()
			err = httpSrv.ListenAndServeTLS("", "")
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Bool("tls", cfg.TLSEnabled()).
		Str("engine", engine.Address().Hex()).
		Msg("membership dao listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}

// deployTargets places the reference counter, NFT and marketplace next to
// the engine so proposals have something to call.
func deployTargets(ledger *chain.Ledger, cfg config.Config) error {
	counter, nft, market, err := cfg.TargetAddresses()
	if err != nil {
		return err
	}
	if _, err := targets.DeployCounter(ledger, counter); err != nil {
		return err
	}
	if _, err := targets.DeployNFT(ledger, nft, "Membership Collectibles", "MDC"); err != nil {
		return err
	}
	_, err = targets.DeployMarketplace(ledger, market)
	return err
}
