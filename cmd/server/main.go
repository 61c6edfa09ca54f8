package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"tailtrail/internal/api"
	"tailtrail/internal/files"
	"tailtrail/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "Config file (default: TAILTRAIL_CONFIG or ./tailtrail.toml)")
	addr := flag.String("addr", "", "Override listen address")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		utils.New(os.Stderr).Errorf("load config: %v", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.ListenAddr = *addr
	}

	logger := utils.New(os.Stderr)
	if cfg.Log.File != "" {
		if logger, err = utils.NewLogger(cfg.Log.File); err != nil {
			utils.New(os.Stderr).Errorf("%v", err)
			os.Exit(1)
		}
		defer logger.Close()
	}

	users, err := files.NewUserStore(cfg.Server.DataDir)
	if err != nil {
		logger.Errorf("user store: %v", err)
		os.Exit(1)
	}
	posts, err := files.NewPostStore(cfg.Server.DataDir)
	if err != nil {
		logger.Errorf("post store: %v", err)
		os.Exit(1)
	}

	srv := api.NewServer(api.Config{
		Users:          users,
		Posts:          posts,
		Logger:         logger,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.NewRouter(srv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("Server running on %s (data in %s)", cfg.Server.ListenAddr, cfg.Server.DataDir)
	if err := httpSrv.ListenAndServe(); err != nil {
		logger.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}
