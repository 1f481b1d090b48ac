package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"mashiro/cli/internal/appserver"
	"mashiro/cli/internal/automation"
	"mashiro/cli/internal/config"
	"mashiro/cli/internal/db"
	"mashiro/cli/internal/dispatch"
	"mashiro/cli/internal/global"
	"mashiro/cli/internal/handlers"
	"mashiro/cli/internal/historydb"
	"mashiro/cli/internal/lifecycle"
	"mashiro/cli/internal/localapi"
	"mashiro/cli/internal/sysinfo"
	"mashiro/cli/internal/taskrun"
	"mashiro/cli/internal/taskstore"
)

const (
	defaultDBFileName = "mashiro.db"
	shutdownTimeout   = 3 * time.Second
)

type Application struct {
	localAPIBaseURL string
	taskStore       string
	dbDSN           string
	handler         http.Handler
	mgr             *lifecycle.Manager
	httpServer      *http.Server
	gdb             *gorm.DB
	logger          *slog.Logger
}

// StartApplication wires the assistant: config, desktop backend, command
// registry, task store, worker and HTTP server. Nothing listens until Run.
func StartApplication(_ context.Context, opts StartOptions) (*Application, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	configDir := strings.TrimSpace(opts.ConfigDir)
	if configDir == "" {
		dir, err := global.DefaultConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		configDir = dir
	}
	storeKind := config.NormalizeStore(opts.TaskStore)
	dsn := ResolveDSN(storeKind, configDir, opts.DBDSN)

	cfg, err := global.NewConfigStore(configDir).LoadOrInit()
	if err != nil {
		return nil, fmt.Errorf("load assistant config: %w", err)
	}

	exec := opts.Exec
	if exec == nil {
		exec = &automation.RealExec{}
	}
	desktop := automation.NewDesktop(exec, opts.GOOS)
	registry, err := handlers.BuildRegistry(desktop, cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := db.OpenSQLiteWithMigrations(dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logs, err := db.PrepareForServe(gdb)
	if err != nil {
		_ = db.Close(gdb)
		return nil, fmt.Errorf("prepare database: %w", err)
	}
	for _, line := range logs {
		logger.Info("startup migration", "detail", line)
	}
	var store taskstore.Store = taskstore.NewMemoryStore()
	if storeKind == config.StoreSQLite {
		sqlStore, err := taskstore.NewSQLStore(gdb)
		if err != nil {
			_ = db.Close(gdb)
			return nil, err
		}
		store = sqlStore
	}
	usage, err := historydb.NewStore(gdb)
	if err != nil {
		_ = db.Close(gdb)
		return nil, err
	}

	hub := localapi.NewWSHub()
	tasks, err := taskrun.NewService(taskrun.Deps{
		Store:      store,
		Dispatcher: dispatch.NewDispatcher(registry, logger.With("module", "dispatch")),
		Events:     hub,
		Usage:      usage,
		Logger:     logger.With("module", "taskrun"),
		QueueSize:  opts.QueueSize,
	})
	if err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	localServer := localapi.NewServer(localapi.Deps{
		Tasks:  tasks,
		Usage:  usage,
		Host:   sysinfo.NewHost(),
		Hub:    hub,
		Logger: logger.With("module", "localapi"),
	})
	server := appserver.NewServer(appserver.Deps{
		Local:  localServer.Handler(),
		Logger: logger.With("module", "http"),
	})

	host := strings.TrimSpace(opts.LocalHost)
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.LocalPort
	if port <= 0 {
		port = 8000
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	mgr := lifecycle.NewManager(logger.With("module", "lifecycle"))
	mgr.AddRun("http-server", func(runCtx context.Context) error {
		go func() {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
		logger.Info("http server listening", "addr", addr, "store", storeKind, "commands", registry.Len())
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	mgr.AddRun("task-worker", tasks.RunWorker)
	mgr.AddShutdown("http-server-shutdown", func(ctx context.Context) error {
		err := httpServer.Shutdown(ctx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	mgr.AddShutdown("close-db", func(context.Context) error {
		return db.Close(gdb)
	})

	return &Application{
		localAPIBaseURL: "http://" + addr,
		taskStore:       storeKind,
		dbDSN:           dsn,
		handler:         server.Handler(),
		mgr:             mgr,
		httpServer:      httpServer,
		gdb:             gdb,
		logger:          logger,
	}, nil
}

// ResolveDSN picks the database location. Memory stores still get an
// in-memory database for command usage counts, private to this call.
func ResolveDSN(storeKind, configDir, dsn string) string {
	if v := strings.TrimSpace(dsn); v != "" {
		return v
	}
	if config.NormalizeStore(storeKind) == config.StoreSQLite {
		return filepath.Join(configDir, defaultDBFileName)
	}
	return db.NewMemoryDSN()
}

func (a *Application) LocalAPIBaseURL() string {
	if a == nil {
		return ""
	}
	return strings.TrimSpace(a.localAPIBaseURL)
}

func (a *Application) DBDSN() string {
	if a == nil {
		return ""
	}
	return a.dbDSN
}

func (a *Application) TaskStore() string {
	if a == nil {
		return ""
	}
	return a.taskStore
}

// Handler serves the full HTTP surface without binding a port.
func (a *Application) Handler() http.Handler {
	if a == nil {
		return http.NotFoundHandler()
	}
	return a.handler
}

// Run blocks until ctx is cancelled or a run job fails, then runs every
// shutdown job.
func (a *Application) Run(ctx context.Context) error {
	if a == nil || a.mgr == nil {
		return nil
	}
	return a.mgr.StartAndWait(ctx)
}

// Shutdown releases resources of an application that was never Run.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	var err error
	if a.httpServer != nil {
		if serr := a.httpServer.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			err = serr
		}
	}
	return errors.Join(err, db.Close(a.gdb))
}
