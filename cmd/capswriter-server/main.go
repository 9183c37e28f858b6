package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/lokutor-ai/capswriter-go/internal/config"
	"github.com/lokutor-ai/capswriter-go/internal/lifecycle"
	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/server/httpapi"
	"github.com/lokutor-ai/capswriter-go/internal/server/queue"
	"github.com/lokutor-ai/capswriter-go/internal/server/recognizer"
	"github.com/lokutor-ai/capswriter-go/internal/server/translate"
	"github.com/lokutor-ai/capswriter-go/internal/server/wsserver"
)

func main() {
	configPath := flag.String("config", "", "path to a server config file (yaml/json/toml, per viper)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		// No .env file is the common case in production; not fatal.
	}

	log := logging.NewConsole("server", *debug)

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Error("failed to load server config", "error", err)
		return
	}

	lc := lifecycle.New(log, true)

	q := queue.New(log, cfg.QueueMaxTotal, cfg.QueueMaxPerClient)
	ws := wsserver.New(log, cfg.Secret, q)

	worker := recognizer.NewWorker(log, q, recognizer.EchoModel{}, ws)
	if cfg.Translate.CommandEnable && cfg.Translate.ServerURL != "" {
		worker = worker.WithTranslate(translate.New(translate.Config{
			ServerURL:  cfg.Translate.ServerURL,
			SourceLang: cfg.Translate.SourceLang,
			Timeout:    time.Duration(cfg.Translate.TimeoutMs) * time.Millisecond,
			APIToken:   cfg.Translate.APIToken,
		}))
	}
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go worker.Run(workerCtx)
	lc.RegisterOnShutdown("recognizer-worker", cancelWorker)

	mux := http.NewServeMux()
	mux.Handle("/", ws)

	wsSrv := &http.Server{Addr: cfg.ListenAddr(), Handler: mux}
	go func() {
		log.Info("websocket server listening", "addr", cfg.ListenAddr())
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("websocket server stopped", "error", err)
		}
	}()
	lc.RegisterOnShutdown("ws-server", func() { wsSrv.Close() })

	if cfg.HTTP.Enable {
		engine := gin.New()
		engine.Use(gin.Recovery())
		api := httpapi.New(log, httpapi.Config{
			Secret:      cfg.Secret,
			SegDuration: cfg.HTTP.SegDuration,
			SegOverlap:  cfg.HTTP.SegOverlap,
			TimeoutSecs: cfg.HTTP.TimeoutSecs,
			MaxUploadMB: cfg.HTTP.MaxUploadMB,
		}, q, ws)
		api.RegisterRoutes(engine)

		httpSrv := &http.Server{Addr: cfg.HTTPListenAddr(), Handler: engine}
		go func() {
			log.Info("http transcript api listening", "addr", cfg.HTTPListenAddr())
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http api stopped", "error", err)
			}
		}()
		lc.RegisterOnShutdown("http-api", func() { httpSrv.Close() })
	}

	lc.WaitForShutdown()
}
