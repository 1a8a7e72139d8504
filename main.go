package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/joeshaw/envdecode"

	"github.com/wpmend-dev/wpmend-agent/api/server/config"
	healthcheckHandlers "github.com/wpmend-dev/wpmend-agent/api/server/handlers/healthcheck"
	incidentHandlers "github.com/wpmend-dev/wpmend-agent/api/server/handlers/incident"
	"github.com/wpmend-dev/wpmend-agent/internal/adapter"
	"github.com/wpmend-dev/wpmend-agent/internal/envconf"
	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	"github.com/wpmend-dev/wpmend-agent/internal/repository"
	"github.com/wpmend-dev/wpmend-agent/pkg/discovery"
	"github.com/wpmend-dev/wpmend-agent/pkg/httpclient"
	"github.com/wpmend-dev/wpmend-agent/pkg/ledger"
	"github.com/wpmend-dev/wpmend-agent/pkg/notifier"
	"github.com/wpmend-dev/wpmend-agent/pkg/orchestrator"
	"github.com/wpmend-dev/wpmend-agent/pkg/retention"
	opsHandlers "github.com/wpmend-dev/wpmend-agent/pkg/server/handlers"
	"github.com/wpmend-dev/wpmend-agent/pkg/server/routes"
	"github.com/wpmend-dev/wpmend-agent/pkg/sshexec"
	"github.com/wpmend-dev/wpmend-agent/pkg/sweeper"
)

func main() {
	var envDecoderConf envconf.EnvDecoderConf = envconf.EnvDecoderConf{}

	if err := envdecode.StrictDecode(&envDecoderConf); err != nil {
		logger.NewErrorConsole(true).Fatal().Caller().Msgf("could not decode env conf: %v", err)

		os.Exit(1)
	}

	l := logger.NewConsole(envDecoderConf.Debug)

	// create database connection through adapter
	db, err := adapter.New(&envDecoderConf.DBConf)

	if err != nil {
		l.Fatal().Caller().Msgf("could not create database connection: %v", err)
	}

	if err := repository.AutoMigrate(db, false); err != nil {
		l.Fatal().Caller().Msgf("auto migration failed: %v", err)
	}

	repo := repository.NewRepository(db)

	sshConf, err := sshexec.ConfFromEnv(&envDecoderConf.SSHConf)

	if err != nil {
		l.Fatal().Caller().Msgf("ssh substrate configuration invalid: %v", err)
	}

	execClient := sshexec.NewClient(sshConf, l)

	poolSweeper := sweeper.NewSweeper(
		time.Duration(envDecoderConf.SSHConf.PoolSweepSeconds)*time.Second,
		func() {
			if evicted := execClient.Pool().EvictIdle(); evicted > 0 {
				l.Info().Msgf("evicted %d idle ssh sessions", evicted)
			}
		},
	)

	poolSweeper.Start()

	disc := discovery.NewDiscoverer(l)

	led := ledger.NewLedger(repo, execClient.Redactor(), l)

	var n notifier.Notifier = notifier.NoOpNotifier{}
	var consumer *notifier.Consumer

	if envDecoderConf.NotifyConf.WebhookHost != "" {
		webhookClient := httpclient.NewClient(
			envDecoderConf.NotifyConf.WebhookHost,
			envDecoderConf.NotifyConf.WebhookToken,
		)

		webhook := notifier.NewWebhookNotifier(webhookClient, l)

		if envDecoderConf.RedisConf.Enabled {
			queue := notifier.NewQueueClient(&envDecoderConf.RedisConf)

			n = notifier.NewQueueNotifier(queue)

			consumer = notifier.NewConsumer(queue, webhook, l, time.Second)
			consumer.Start()
		} else {
			n = webhook
		}
	}

	orch := orchestrator.NewOrchestrator(repo, execClient, disc, led, n, l, &orchestrator.Conf{
		PhaseRetryBudget: int(envDecoderConf.RemediationConf.PhaseRetryBudget),
	})

	purger := retention.NewPurger(repo, l, &envDecoderConf.RetentionConf)

	retentionSweeper := sweeper.NewSweeper(
		time.Duration(envDecoderConf.RetentionConf.SweepIntervalMinutes)*time.Minute,
		func() {
			if _, err := purger.Sweep(); err != nil {
				l.Error().Caller().Msgf("retention sweep failed: %v", err)
			}
		},
	)

	retentionSweeper.Start()

	conf, err := config.GetConfig(&envDecoderConf, repo, orch)

	if err != nil {
		l.Fatal().Caller().Msgf("server config loading failed: %v", err)
	}

	// internal ops server
	go func() {
		ops := routes.NewRouter(opsHandlers.NewOpsHandlers(repo, execClient, l))

		if err := ops.Run(fmt.Sprintf(":%d", envDecoderConf.OpsPort)); err != nil {
			l.Error().Caller().Msgf("error starting ops server: %v", err)
		}
	}()

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Mount("/debug", middleware.Profiler())

	r.Method("GET", "/livez", healthcheckHandlers.NewLivezHandler(conf))
	r.Method("GET", "/readyz", healthcheckHandlers.NewReadyzHandler(conf))

	r.Method("GET", "/incidents", incidentHandlers.NewListIncidentsHandler(conf))
	r.Method("GET", "/incidents/{uid}", incidentHandlers.NewGetIncidentHandler(conf))
	r.Method("GET", "/incidents/{uid}/timeline", incidentHandlers.NewListTimelineHandler(conf))

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", envDecoderConf.ServerPort), r); err != nil {
			l.Error().Caller().Msgf("error starting API server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	l.Info().Msgf("shutting down")

	retentionSweeper.Stop()
	poolSweeper.Stop()

	if consumer != nil {
		consumer.Stop()
	}

	execClient.Close()
}
