package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/cmd/serve"
	"portfolioexecutor/src/utils"
)

var APP_NAME = os.Getenv("APP_NAME")

func main() {
	utils.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	defer handlePanic()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	service := &serve.Service{Log: logger.WithField("app", APP_NAME)}
	if err := service.Start(ctx); err != nil {
		logger.WithError(err).Error("Service stopped with error")
		stop()
		os.Exit(1)
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
		//nolint
		time.Sleep(time.Second * 5)
	}
}
