package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"aiopschat/agent"
	"aiopschat/config"
	"aiopschat/dbpool"
	"aiopschat/history"
	"aiopschat/logger"
)

func main() {
	// Missing .env is fine; the environment may be set by the deployment.
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	appLog := logger.NewLogger()
	if err := appLog.Init(cfg.LogDir); err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
	defer appLog.Close()
	appLog.SetDetailed(cfg.DetailedLog)

	debugLog := func(msg string) { appLog.Debugf("%s", msg) }

	pool := dbpool.New(dbpool.EngineSQLite, debugLog)

	store, err := history.NewStore(pool, cfg.HistoryDBPath())
	if err != nil {
		appLog.Logf("fatal: %v", err)
		log.Fatalf("failed to open history store: %v", err)
	}
	defer store.Close()

	interpreter := agent.NewInterpreterClient(cfg.CodeInterpreterURL)

	tools := []agent.StepTool{
		&agent.ThinkTool{},
		&agent.FinalAnswerTool{},
		agent.NewPythonTool(interpreter, cfg.InterpreterWorkDir, cfg.LocalWorkDir, cfg.FileURNNamespace),
		agent.NewWikipediaTool(),
	}
	if cfg.DB2.Configured() {
		tools = append(tools, agent.NewDB2Tool(cfg.DB2, pool, cfg.LocalWorkDir))
	} else {
		appLog.Log("DB2 credentials not configured, DB2 tool disabled")
	}
	if cfg.PSQL.Configured() {
		tools = append(tools, agent.NewPSQLTool(cfg.PSQL, pool))
	} else {
		appLog.Log("PostgreSQL credentials not configured, PSQL tool disabled")
	}

	ctx := context.Background()
	loop, err := agent.NewEinoLoop(ctx, cfg, tools)
	if err != nil {
		appLog.Logf("fatal: %v", err)
		log.Fatalf("failed to create reasoning loop: %v", err)
	}
	loop.SetLogger(debugLog)

	fileStore := &agent.LocalFileStore{Dir: cfg.InterpreterWorkDir}
	platform := agent.NewHTTPPlatformClient(cfg.PlatformURL)
	resolver := agent.NewFileReferenceResolver(fileStore, platform, cfg.PublicPlatformURL, cfg.FileURNNamespace)
	resolver.SetLogger(debugLog)

	renderer := &agent.TrajectoryRenderer{Verbose: cfg.DetailedLog}

	orchestrator := agent.NewOrchestrator(loop, store, resolver, renderer)
	orchestrator.SetLogger(debugLog)

	files := agent.NewMemoryPlatformStore()
	server := NewServer(orchestrator, resolver, files, store, appLog)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Logf("listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Logf("server error: %v", err)
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	appLog.Log("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
}
