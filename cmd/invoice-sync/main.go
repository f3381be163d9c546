package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/invoiceflow/invoiceflow/chain"
	"github.com/invoiceflow/invoiceflow/db"
	"github.com/invoiceflow/invoiceflow/lib/logging"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// script to re-read invoices from the registry contract and repair the mirror
//
//	invoice-sync -chain 97 12 13 14
//	SYNC_TOKEN_IDS=12,13 invoice-sync
func main() {
	chainID := flag.Int64("chain", 0, "chain id, defaults to CHAIN_ID")
	flag.Parse()

	c := &service.Config{}
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}
	chainCfg, err := chain.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading chain config: %v", err)
	}
	if *chainID == 0 {
		*chainID = chainCfg.ChainID
	}

	tokenIDs, err := parseTokenIDs(flag.Args(), os.Getenv("SYNC_TOKEN_IDS"))
	if err != nil {
		logrus.Fatalf("Invalid token ids: %v", err)
	}
	if len(tokenIDs) == 0 {
		logrus.Fatal("No token ids given")
	}

	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{Dsn: c.SentryDSN}); err != nil {
			logrus.Errorf("sentry init error: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	dbConn, err := db.Open(c)
	if err != nil {
		logrus.Fatalf("Error initializing db connection: %v", err)
	}
	defer dbConn.Close()

	svc := &service.InvoiceFlowService{
		Config:             c,
		ChainConfig:        chainCfg,
		DB:                 dbConn,
		Logger:             logging.Logger(c.LogFilePath, c.LogLevel),
		Dial:               chain.NewDialer(time.Duration(chainCfg.PollInterval) * time.Second),
		NotificationPubSub: service.NewPubsub(),
	}

	ctx := context.Background()
	failed := 0
	for _, tokenID := range tokenIDs {
		callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		invoice, err := svc.SyncFromChain(callCtx, tokenID, *chainID)
		cancel()
		if err != nil {
			failed++
			logrus.WithError(err).WithField("token_id", tokenID).Error("sync failed")
			sentry.CaptureException(err)
			continue
		}
		logrus.WithFields(logrus.Fields{
			"token_id": tokenID,
			"status":   invoice.Status,
			"owner":    invoice.CurrentOwnerAddress,
		}).Info("synced")
	}
	logrus.Infof("Synced %d of %d invoices", len(tokenIDs)-failed, len(tokenIDs))
	if failed > 0 {
		os.Exit(1)
	}
}

func parseTokenIDs(args []string, env string) ([]int64, error) {
	if len(args) == 0 && env != "" {
		args = strings.Split(env, ",")
	}
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("%q is not a token id", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
