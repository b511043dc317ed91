package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"unlabel/backend/internal/api"
	"unlabel/backend/internal/config"
	"unlabel/backend/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}
	cfg.Log.Apply()

	ctx := context.Background()
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logrus.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logrus.WithError(err).Warn("telemetry shutdown")
		}
	}()

	serverCfg, err := cfg.ServerConfig(ctx)
	if err != nil {
		logrus.Fatalf("configure server: %v", err)
	}

	server, err := api.NewServer(serverCfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	logrus.Infof("starting unlabel backend on :%s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logrus.Errorf("server exited: %v", err)
	}
}
