package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"fragransia-payments/internal/config"
	"fragransia-payments/internal/infrastructure/audit"
	"fragransia-payments/internal/infrastructure/razorpay"
	"fragransia-payments/internal/infrastructure/repo"
	"fragransia-payments/internal/server"
	"fragransia-payments/internal/usecase"
)

func main() {
	config.LoadDotEnv(".env", ".env.local")
	envDefaults := config.EnvDefaults()

	env := flag.String("env", envDefaults.Env, "")
	port := flag.Int("port", envDefaults.Port, "")
	dbURL := flag.String("db-url", envDefaults.DatabaseURL, "")
	jwtSecret := flag.String("jwt-secret", envDefaults.JWTSecret, "")
	keyID := flag.String("razorpay-key-id", envDefaults.RazorpayKeyID, "")
	keySecret := flag.String("razorpay-key-secret", envDefaults.RazorpaySecret, "")
	gatewayURL := flag.String("razorpay-url", envDefaults.RazorpayURL, "")
	gatewayMock := flag.Bool("gateway-mock", envDefaults.GatewayMock, "")
	auditDir := flag.String("audit-dir", envDefaults.AuditDir, "")
	logJSON := flag.Bool("log-json", envDefaults.LogJSON, "")

	flag.Parse()

	cfg := config.Config{
		Env:            *env,
		Port:           *port,
		DatabaseURL:    *dbURL,
		JWTSecret:      *jwtSecret,
		RazorpayKeyID:  *keyID,
		RazorpaySecret: *keySecret,
		RazorpayURL:    *gatewayURL,
		GatewayTimeout: envDefaults.GatewayTimeout,
		GatewayMock:    *gatewayMock,
		AuditDir:       *auditDir,
		LogJSON:        *logJSON,
	}

	logger := newLogger(cfg.LogJSON)
	slog.SetDefault(logger)

	var (
		orderRepo  usecase.OrderRepo
		txnRepo    usecase.TransactionRepo
		refundRepo usecase.RefundRepo
	)
	if cfg.DatabaseURL != "" {
		pg, err := repo.NewPostgresRepo(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres init failed: ", err)
		}
		orderRepo, txnRepo, refundRepo = pg, pg, pg
		logger.Info("using postgres store")
	} else {
		orderRepo = repo.NewMemoryOrderRepo()
		txnRepo = repo.NewMemoryTxnRepo()
		refundRepo = repo.NewMemoryRefundRepo()
		logger.Warn("no database url, using in-memory store")
	}

	var gateway usecase.Gateway
	if cfg.GatewayMock {
		gateway = razorpay.NewMock(cfg.RazorpaySecret)
		logger.Warn("using mock payment gateway")
	} else {
		gateway = razorpay.NewClient(cfg.RazorpayKeyID, cfg.RazorpaySecret, cfg.RazorpayURL, cfg.GatewayTimeout)
	}

	auth := &usecase.AuthService{JWTSecret: cfg.JWTSecret}
	orders := &usecase.OrderService{Repo: orderRepo}
	payments := &usecase.PaymentService{
		Orders:  orderRepo,
		Txns:    txnRepo,
		Refunds: refundRepo,
		Gateway: gateway,
		Audit:   audit.NewFSWriter(cfg.AuditDir),
		Secret:  cfg.RazorpaySecret,
		Log:     logger,
	}

	srv := server.New(cfg, auth, orders, payments, logger)
	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("starting payments backend", "env", cfg.Env, "addr", addr, "gatewayMock", cfg.GatewayMock)
	if err := srv.Run(addr); err != nil {
		log.Fatal("server failed: ", err)
	}
}

func newLogger(asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

