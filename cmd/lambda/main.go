package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"unlabel/backend/internal/api"
	"unlabel/backend/internal/config"
	"unlabel/backend/internal/telemetry"
)

// The server is built once per execution environment and reused across invocations.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}
	cfg.Log.Apply()
	logrus.SetFormatter(&logrus.JSONFormatter{})

	ctx := context.Background()
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logrus.Fatalf("init telemetry: %v", err)
	}

	serverCfg, err := cfg.ServerConfig(ctx)
	if err != nil {
		logrus.Fatalf("configure server: %v", err)
	}
	server, err := api.NewServer(serverCfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	lambda.StartWithOptions(api.LambdaHandler(router), lambda.WithEnableSIGTERM(func() {
		if err := shutdown(context.Background()); err != nil {
			logrus.WithError(err).Warn("telemetry shutdown")
		}
		if err := server.Close(); err != nil {
			logrus.WithError(err).Warn("close server")
		}
	}))
}
