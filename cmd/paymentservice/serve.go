package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"go-mpesa/mpesa"
	"go-mpesa/notify"
	"go-mpesa/payment/db"
	"go-mpesa/payment/order"
	"go-mpesa/service"
	"go-mpesa/utils"
	"go-mpesa/web"
	"go-mpesa/web/controllers"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the /payments API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := utils.LoadConfig()
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				cfg.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			migrate, _ := cmd.Flags().GetBool("migrate")
			return serve(cfg, migrate)
		},
	}

	cmd.Flags().StringP("port", "p", "", "Listen port (overrides PORT)")
	cmd.Flags().Bool("migrate", true, "Migrate the schema before serving")

	return cmd
}

func serve(cfg utils.Config, migrate bool) error {
	log, err := utils.NewLogger(cfg.Production())
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DSN)
	if err != nil {
		return err
	}
	if migrate {
		if err := db.Migrate(gdb); err != nil {
			return err
		}
	}
	store := db.NewStore(gdb, cfg.DBTimeout)

	client := mpesa.NewClient(mpesa.Config{
		BaseURL:          cfg.MpesaBaseURL,
		ConsumerKey:      cfg.MpesaConsumerKey,
		ConsumerSecret:   cfg.MpesaConsumerSecret,
		ShortCode:        cfg.MpesaShortCode,
		Passkey:          cfg.MpesaPasskey,
		CallbackURL:      cfg.MpesaCallbackURL,
		AccountReference: cfg.MpesaAccountRef,
		TransactionDesc:  cfg.MpesaTxnDesc,
	}, mpesa.WithHTTPClient(&http.Client{Timeout: cfg.MpesaHTTPTimeout}))

	notifier, closeNotifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	svc := order.NewService(order.Config{
		Gateway:   client,
		Store:     store,
		Notifier:  notifier,
		Logger:    log,
		MaxAmount: cfg.MpesaMaxAmount,
	})
	go svc.NewMonitor(cfg.SweepInterval, cfg.SweepAge).Run(ctx)

	router, err := web.NewRouter(ctx, web.RouterConfig{
		Handler:            controllers.NewHandler(svc, store, client.Tokens(), log, cfg.Production()),
		Logger:             log,
		JWTSecret:          cfg.JWTSecret,
		CallbackSecret:     cfg.CallbackSecret,
		CallbackAllowedIPs: cfg.CallbackAllowedIPs,
		CORSOrigins:        cfg.CORSOrigins,
		TrustedProxies:     cfg.TrustedProxies,
		RateLimit:          cfg.RateLimit,
		RateWindow:         cfg.RateWindow,
	})
	if err != nil {
		return err
	}

	return service.Start(ctx, ":"+cfg.Port, router, log)
}

// newNotifier builds the completion hook from whatever sinks are configured.
func newNotifier(cfg utils.Config, log *zap.Logger) (notify.Notifier, func(), error) {
	var sinks notify.Multi
	closeFn := func() {}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := notify.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			return nil, nil, err
		}
		k := notify.NewKafkaNotifier(producer, cfg.KafkaTopic)
		sinks = append(sinks, k)
		closeFn = func() {
			if err := k.Close(); err != nil {
				log.Warn("closing kafka producer", zap.Error(err))
			}
		}
		log.Info("publishing payment events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	if cfg.SMTPHost != "" && len(cfg.NotifyEmails) > 0 {
		sinks = append(sinks, notify.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.FromAddr, cfg.NotifyEmails))
		log.Info("emailing payment events", zap.Strings("to", cfg.NotifyEmails))
	}

	if len(sinks) == 0 {
		return notify.Nop{}, closeFn, nil
	}
	return sinks, closeFn, nil
}
