package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"spire/server/auth"
	"spire/server/config"
	"spire/server/logger"
	"spire/server/srv"
)

func newUpgrader(cfg *config.Config) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.WebSocket.IsOriginAllowed(r.Header.Get("Origin"), r.Host)
		},
	}
}

func wsHandler(h *srv.Hub, a *auth.Auth, upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Identity is resolved before the upgrade; a missing or invalid
		// cookie degrades to a guest session rather than a rejection.
		username, isGuest := a.ResolveCookie(r)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnf("upgrade: %v", err)
			return
		}
		go h.HandleWS(conn, username, isGuest)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("config %s: %v (continuing with defaults)", *configPath, err)
	}
	logger.Initialize(logger.Config{
		Level:          cfg.Log.Level,
		Format:         cfg.Log.Format,
		File:           cfg.Log.File,
		FileMaxSizeMB:  cfg.Log.FileMaxSizeMB,
		FileMaxBackups: cfg.Log.FileMaxBackups,
		FileMaxAgeDays: cfg.Log.FileMaxAgeDays,
	})

	a, err := auth.NewAuth(cfg.Server.DataDir)
	if err != nil {
		logger.Errorf("auth init: %v", err)
		os.Exit(1)
	}

	hub := srv.NewHub(cfg)
	go hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.WebSocket.Path, wsHandler(hub, a, newUpgrader(cfg)))
	mux.HandleFunc("/register", a.HandleRegister)
	mux.HandleFunc("/login", a.HandleLogin)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })

	s := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	logger.Infof("server listening on %s", cfg.Server.Addr)
	if err := s.ListenAndServe(); err != nil {
		logger.Errorf("listen: %v", err)
		os.Exit(1)
	}
}
