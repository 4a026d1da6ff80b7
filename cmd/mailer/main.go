// Command mailer drains the outbound mail queue and delivers each message
// over SMTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iliyamo/account-service/internal/config"
	"github.com/iliyamo/account-service/internal/logging"
	"github.com/iliyamo/account-service/internal/mail"
	"github.com/iliyamo/account-service/internal/queue"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, reading configuration from the environment")
	}
	logger := logging.SetupGlobalHandler("account-mailer")

	mc := config.LoadMailConfig()
	var sender mail.Sender = mail.LogSender{Logger: logger}
	if mc.Host != "" {
		sender = mail.NewSMTPSender(mc)
	} else {
		logger.Warn("SMTP_HOST not set, messages will only be logged")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("mailer consuming", "queue", mc.Queue)
	err := queue.Consume(ctx, config.RabbitURL(), mc.Queue, queue.MailHandler(sender))
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mailer stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("mailer stopped")
}
