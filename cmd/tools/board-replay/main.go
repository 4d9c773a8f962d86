// cmd/tools/board-replay/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"application-board/internal/backend"
	awsclient "application-board/internal/common/aws"
	"application-board/internal/common/camunda"
	"application-board/internal/common/config"
	"application-board/internal/common/logger"
	"application-board/internal/common/observability"
	"application-board/internal/kanban"
	"application-board/internal/kanban/mutation"
	"application-board/internal/notify"
	"application-board/internal/replay"
	"application-board/internal/store"
)

func main() {
	scriptPath := pflag.StringP("script", "s", "", "gesture script (YAML)")
	configPath := pflag.StringP("config", "c", "", "config file; defaults to the usual search paths")
	backendName := pflag.StringP("backend", "b", "memory", "memory, store or zeebe")
	timeout := pflag.Duration("timeout", 0, "status write timeout; overrides board.mutation_timeout")
	latency := pflag.Duration("latency", 0, "simulated write latency for the memory backend")
	debug := pflag.Bool("debug", false, "check board invariants after every change")
	refresh := pflag.Bool("refresh-on-confirm", false, "reload the list after each confirmed move")
	logLevel := pflag.String("log-level", "warn", "log level")
	pflag.Parse()

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --script is required")
		pflag.Usage()
		os.Exit(1)
	}

	zapLog := logger.New(*logLevel, "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	f, err := os.Open(*scriptPath)
	if err != nil {
		zapLog.Fatal("open script", zap.Error(err))
	}
	script, err := replay.Decode(f)
	f.Close()
	if err != nil {
		zapLog.Fatal("invalid script", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observability.New("board-replay")
	defer obs.Shutdown()

	var (
		cfg    *config.Config
		source kanban.Source
		writer mutation.Writer
		faults replay.Faults
	)

	if *backendName != "memory" {
		if *configPath != "" {
			cfg, err = config.LoadFromFile(*configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			zapLog.Fatal("config load failed", zap.Error(err))
		}
	}

	switch *backendName {
	case "memory":
		mem := store.NewMemoryRepository(script.Records(time.Now().UTC())...)
		mem.SetLatency(*latency)
		source, writer, faults = mem, mem, mem
	case "store":
		stores, err := backend.Open(ctx, cfg, backend.Options{MaxRetries: 3, InitialDelay: time.Second}, zapLog, log)
		if err != nil {
			zapLog.Fatal("stores unavailable", zap.Error(err))
		}
		defer stores.Close()
		source, writer = stores.Repository, stores.Repository
	case "zeebe":
		client, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		if err != nil {
			zapLog.Fatal("zeebe unavailable", zap.Error(err))
		}
		defer client.Close()
		gw := camunda.NewBoardGateway(camunda.NewInstanceRunner(client), camunda.Processes{
			ListApplications: cfg.Camunda.Processes.ListApplications,
			UpdateStatus:     cfg.Camunda.Processes.UpdateStatus,
		}, log)
		source, writer = gw, gw
	default:
		zapLog.Fatal("unknown backend", zap.String("backend", *backendName))
	}

	writeTimeout := 10 * time.Second
	if cfg != nil {
		writeTimeout = config.GetDuration(cfg.Board.MutationTimeout)
		*debug = *debug || cfg.Board.Debug
		*refresh = *refresh || cfg.Board.RefreshOnConfirm
	}
	if *timeout > 0 {
		writeTimeout = *timeout
	}

	toasts := notify.NewToasts()
	notifiers := notify.Multi{toasts, notify.Logging{Logger: log}}
	if cfg != nil && cfg.Notifications.SNS.Enabled {
		sns, err := awsclient.NewSNSClient(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		notifiers = append(notifiers, notify.NewSNSNotifier(sns, script.UserID, 5*time.Second, log))
	}

	queue := mutation.New(writer, writeTimeout, log)
	defer queue.Close()

	board := kanban.NewReconciler(source, queue, notifiers, obs, log, kanban.Options{
		UserID:           script.UserID,
		Debug:            *debug,
		RefreshOnConfirm: *refresh,
	})
	if err := board.Load(ctx); err != nil {
		zapLog.Fatal("initial load failed", zap.Error(err))
	}

	fmt.Println("initial board:")
	replay.PrintBoard(os.Stdout, board.Snapshot())

	if err := replay.NewRunner(board, faults, toasts, os.Stdout, log).Run(ctx, script); err != nil {
		zapLog.Error("replay aborted", zap.Error(err))
		queue.Wait()
		os.Exit(1)
	}
	queue.Wait()
}
