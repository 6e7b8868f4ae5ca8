package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/primecare-chat/api/handlers"
	"github.com/linesmerrill/primecare-chat/api/scheduler"
	"github.com/linesmerrill/primecare-chat/config"
	"github.com/linesmerrill/primecare-chat/databases"
)

func main() {
	config.LoadEnv()

	a := handlers.App{}
	a.Config = *config.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.Config.JWTSecret == "" {
		zap.S().Fatal("JWT_SECRET must be set")
	}

	//initialize database and router
	if err := a.Initialize(ctx); err != nil {
		zap.S().Fatalw("failed to initialize primecare-chat", "error", err)
	}

	go func() {
		if err := a.Hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zap.S().Errorw("chat broadcaster stopped", "error", err)
		}
	}()

	if a.Config.SendgridKey != "" {
		db := a.Database()
		s := scheduler.NewScheduler(
			databases.NewConversationDatabase(db),
			databases.NewUserDatabase(db),
			databases.NewMessageDatabase(db),
			scheduler.NewSendgridMailer(a.Config.SendgridKey, a.Config.MailFrom),
			a.Config.ReminderDelay,
			a.Config.BaseURL,
		)
		if err := s.Start(a.Config.ReminderSchedule); err != nil {
			zap.S().Fatalw("failed to start scheduler", "error", err)
		}
		defer s.Stop()
	} else {
		zap.S().Warn("SENDGRID_API_KEY not set, unread reply reminders are disabled")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", a.Config.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		a.Close(shutdownCtx)
	}()

	zap.S().Infow("primecare-chat is up and running",
		"port", a.Config.Port,
		"url", a.Config.BaseURL,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.S().Fatalw("server stopped", "error", err)
	}
}
