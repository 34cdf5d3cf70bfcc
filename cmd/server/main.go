package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inamate/canvas/internal/asset"
	"github.com/inamate/canvas/internal/config"
	"github.com/inamate/canvas/internal/discovery"
	"github.com/inamate/canvas/internal/generate"
	mw "github.com/inamate/canvas/internal/middleware"
	"github.com/inamate/canvas/internal/project"
	"github.com/inamate/canvas/internal/raster"
	"github.com/inamate/canvas/internal/session"
	"github.com/inamate/canvas/internal/typeid"
)

func main() {
	browse := flag.Duration("browse", 0, "list canvas servers on the local network for this long and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))

	if *browse > 0 {
		runBrowse(*browse)
		return
	}

	renderer := raster.Renderer{Scale: cfg.RasterScale}
	hub := session.NewHub(session.Config{
		Engine:        cfg.Engine(),
		HistoryLimit:  cfg.HistoryLimit,
		FrameInterval: cfg.FrameInterval,
	},
		session.WithRasterizer(renderer),
		session.WithGenerator(generate.Wireframe{Delay: cfg.GenerateDelay}),
	)
	go hub.Run()

	projectHandler := project.NewHandler(project.NewService(hub))
	assetHandler := asset.NewHandler(hub)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.HandleFunc("/canvas", projectHandler.Create).Methods("POST")
	r.HandleFunc("/canvas/{canvasId}", projectHandler.Get).Methods("GET")
	r.HandleFunc("/canvas/{canvasId}/project", projectHandler.GetProject).Methods("GET")
	r.HandleFunc("/canvas/{canvasId}/project", projectHandler.PutProject).Methods("PUT")
	r.HandleFunc("/canvas/{canvasId}/frames/{frameId}.png", projectHandler.FramePNG).Methods("GET")
	r.HandleFunc("/canvas/{canvasId}/frames/{frameId}/generate", projectHandler.Generate).Methods("POST")
	r.HandleFunc("/canvas/{canvasId}/frames/{frameId}/generate", projectHandler.CancelGeneration).Methods("DELETE")

	r.HandleFunc("/canvas/{canvasId}/images", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.HandleFunc("/canvas/{canvasId}/images/{shapeId}", assetHandler.Serve).Methods("GET")

	// WebSocket endpoint
	originPatterns := cfg.OriginPatterns()
	r.HandleFunc("/ws/canvas/{canvasId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, originPatterns)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.Advertise {
		mdnsServer, err := discovery.Advertise(cfg.Port, "canvas")
		if err != nil {
			slog.Warn("mdns advertise", "error", err)
		} else {
			defer mdnsServer.Shutdown()
			slog.Info("advertising on local network", "service", discovery.ServiceType)
		}
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)

		// Stop sessions after the listener so no client joins a closed hub
		hub.Close()
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *session.Hub, originPatterns []string) {
	canvasID := mux.Vars(r)["canvasId"]
	if err := typeid.Validate(canvasID, typeid.PrefixCanvas); err != nil {
		http.Error(w, "invalid canvas id", http.StatusBadRequest)
		return
	}

	// Canvases are anonymous; a display name may be passed along
	userID := "anon-" + uuid.New().String()[:8]
	displayName := strings.TrimSpace(r.URL.Query().Get("name"))
	if displayName == "" {
		displayName = "Anonymous"
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := session.NewClient(hub, conn, userID, displayName, canvasID, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

func runBrowse(timeout time.Duration) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	peers, err := discovery.Browse(ctx, timeout)
	if err != nil {
		slog.Error("browse", "error", err)
		os.Exit(1)
	}
	for _, p := range peers {
		fmt.Printf("%s\t%s\n", p.Addr, p.Name)
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
