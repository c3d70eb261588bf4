package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelstudio.ai/internal/assist"
	"voxelstudio.ai/internal/catalog"
	"voxelstudio.ai/internal/config"
	"voxelstudio.ai/internal/persistence/buildsdb"
	persistlog "voxelstudio.ai/internal/persistence/log"
	"voxelstudio.ai/internal/transport/ws"
)

// apiKeyCredential is the credential name the AI key is stored under.
const apiKeyCredential = "openai_api_key"

func main() {
	var (
		configPath = flag.String("config", "./configs/config.yaml", "config file path")
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		catPath    = flag.String("catalog", "", "block catalog json path (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(*addr) != "" {
		cfg.Addr = *addr
	}
	if strings.TrimSpace(*dataDir) != "" {
		cfg.DataDir = *dataDir
	}
	if strings.TrimSpace(*catPath) != "" {
		cfg.CatalogPath = *catPath
	}

	cat, err := catalog.Load(cfg.CatalogPath, cfg.TextureBase)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}
	logger.Printf("catalog: %d blocks digest=%s", cat.Len(), cat.Digest)

	store, err := buildsdb.Open(filepath.Join(cfg.DataDir, "builds.db"))
	if err != nil {
		logger.Fatalf("open builds db: %v", err)
	}
	defer store.Close()

	audit := persistlog.NewAuditLogger(cfg.DataDir)
	defer audit.Close()

	// The key is read per call so a credential stored through the API takes
	// effect without a restart. The environment wins when set.
	newCompleter := func() (assist.Completer, error) {
		key := strings.TrimSpace(os.Getenv("VS_OPENAI_API_KEY"))
		if key == "" {
			stored, err := store.GetCredential(apiKeyCredential)
			if err != nil {
				return nil, fmt.Errorf("no AI credential configured: %w", err)
			}
			key = stored
		}
		return assist.NewChatClient(key, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Temperature, cfg.AI.MaxTokens)
	}

	pipeline := assist.NewPipeline(nil, cat, cfg.AI.CatalogCap)
	wsSrv := ws.NewServer(pipeline, store, audit, cfg.HistoryCap, newCompleter, logger)

	api := &apiServer{
		store:        store,
		pipeline:     pipeline,
		audit:        audit,
		historyCap:   cfg.HistoryCap,
		catalogCap:   cfg.AI.CatalogCap,
		catalogPath:  cfg.CatalogPath,
		textureBase:  cfg.TextureBase,
		newCompleter: newCompleter,
		log:          logger,
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s := wsSrv.Stats()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP voxelstudio_sessions Current live editor sessions.\n")
		fmt.Fprintf(rw, "# TYPE voxelstudio_sessions gauge\n")
		fmt.Fprintf(rw, "voxelstudio_sessions %d\n", s.Sessions)

		fmt.Fprintf(rw, "# HELP voxelstudio_generate_requests_total Total AI generate requests.\n")
		fmt.Fprintf(rw, "# TYPE voxelstudio_generate_requests_total counter\n")
		fmt.Fprintf(rw, "voxelstudio_generate_requests_total %d\n", s.GenRequests)

		fmt.Fprintf(rw, "# HELP voxelstudio_generate_failures_total Total failed AI generate requests.\n")
		fmt.Fprintf(rw, "# TYPE voxelstudio_generate_failures_total counter\n")
		fmt.Fprintf(rw, "voxelstudio_generate_failures_total %d\n", s.GenFailures)

		fmt.Fprintf(rw, "# HELP voxelstudio_catalog_blocks Blocks in the active catalog.\n")
		fmt.Fprintf(rw, "# TYPE voxelstudio_catalog_blocks gauge\n")
		fmt.Fprintf(rw, "voxelstudio_catalog_blocks %d\n", pipeline.Catalog().Len())
	})
	api.register(mux)
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
