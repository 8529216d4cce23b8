package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"

	"github.com/sshcollectorpro/devextract/addone/parse/platforms"
	"github.com/sshcollectorpro/devextract/api/handler"
	"github.com/sshcollectorpro/devextract/api/router"
	"github.com/sshcollectorpro/devextract/internal/config"
	"github.com/sshcollectorpro/devextract/internal/database"
	"github.com/sshcollectorpro/devextract/internal/service"
	"github.com/sshcollectorpro/devextract/pkg/logger"
)

const debounceInterval = 300 * time.Millisecond

func main() {
	configPath := pflag.StringP("config", "c", "configs/config.yaml", "config file")
	pflag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := initLogger(cfg.Log); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("strategy", cfg.Detect.Strategy).Info("Starting devextract server")

	// 执行记录（可选）
	var runs *database.RunStore
	var dbHealth func() error
	if cfg.Database.Enabled {
		if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
			logger.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close()
		runs = database.NewRunStore(nil)
		dbHealth = database.Health
	}

	archiver, err := service.NewArchiver(cfg.Storage)
	if err != nil {
		logger.Warnf("Raw output archive disabled: %v", err)
	}

	deps := service.Deps{
		Parsers:  platforms.Registry(),
		Archiver: archiver,
	}
	if runs != nil {
		deps.History = runs
	}
	svc, err := service.NewExtractService(cfg, deps)
	if err != nil {
		logger.Fatalf("Failed to create extract service: %v", err)
	}

	var reader handler.RunReader
	if runs != nil {
		reader = runs
	}
	r := router.SetupRouter(cfg.Server.Mode, handler.NewExtractHandler(svc, reader, dbHealth))

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		logger.WithField("addr", server.Addr).WithField("mode", cfg.Server.Mode).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 配置与命令目录热更新
	stopWatch := make(chan struct{})
	if cfg.Catalog.Watch {
		go watchFiles(stopWatch, map[string]func(){
			*configPath: func() {
				newCfg, err := config.Load(*configPath)
				if err != nil {
					logger.Warnf("Config reload failed: %v", err)
					return
				}
				// 仅日志配置支持热更新，其余项需重启
				if err := initLogger(newCfg.Log); err != nil {
					logger.Warnf("Logger reload failed: %v", err)
					return
				}
				logger.Info("Config reloaded")
			},
			cfg.Catalog.Path: func() {
				if err := svc.ReloadCatalog(cfg.Catalog.Path); err != nil {
					logger.Warnf("Command catalog reload failed, keeping current catalog: %v", err)
				}
			},
		})
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	close(stopWatch)

	logger.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	} else {
		logger.Info("Server shutdown complete")
	}
}

func initLogger(c config.LogConfig) error {
	return logger.Init(logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	})
}

// watchFiles 监听文件所在目录，编辑器的 rename 式保存也能触发；同一文件的连续事件合并
func watchFiles(stop <-chan struct{}, handlers map[string]func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("File watch init failed: %v", err)
		return
	}
	defer watcher.Close()

	byPath := make(map[string]func(), len(handlers))
	dirs := map[string]bool{}
	for p, fn := range handlers {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		byPath[abs] = fn
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Warnf("File watch add failed for %s: %v", dir, err)
		}
	}

	timers := map[string]*time.Timer{}
	for {
		select {
		case <-stop:
			for _, t := range timers {
				t.Stop()
			}
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, _ := filepath.Abs(ev.Name)
			fn, ok := byPath[abs]
			if !ok {
				continue
			}
			if t := timers[abs]; t != nil {
				t.Stop()
			}
			timers[abs] = time.AfterFunc(debounceInterval, fn)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("File watch error: %v", err)
		}
	}
}
