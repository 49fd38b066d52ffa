package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ilnpnode/internal/battery"
	"ilnpnode/internal/config"
	"ilnpnode/internal/control"
	"ilnpnode/internal/domain"
	"ilnpnode/internal/forwarding"
	"ilnpnode/internal/link"
	"ilnpnode/internal/logger"
	zapfactory "ilnpnode/internal/logger/zap"
	"ilnpnode/internal/resultlog"
	"ilnpnode/internal/router"
	"ilnpnode/internal/sensing"
	"ilnpnode/internal/shell"
	"ilnpnode/internal/telemetry"
)

var defaultConfigPath = "config/node/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	section := flag.String("section", "", "name of the config section to load (empty selects a single unnamed document)")
	repl := flag.Bool("repl", false, "start the interactive introspection shell on stdin")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath, *section)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}

	myAddr := domain.Address{Loc: domain.Locator(cfg.Node.Locator), ID: domain.ID(cfg.Node.ID)}
	lgr = lgr.Named("node").With(logger.FAddr("self", myAddr))
	cfg.LogConfig(lgr)

	shutdownTracer := telemetry.InitTracer(cfg.Telemetry, "ilnp-node", myAddr)
	defer shutdownTracer(context.Background())

	budget := battery.New(cfg.Battery.MaxSends)

	ownGroup := cfg.Node.MulticastGroups[0]
	lnk, err := link.New(
		cfg.Node.Port,
		cfg.Node.MulticastGroups,
		ownGroup,
		cfg.Node.Loopback,
		cfg.Node.BufferSizeBytes,
		budget,
		link.WithLogger(lgr.Named("link")),
	)
	if err != nil {
		lgr.Error("failed to initialize link interface", logger.F("error", err.Error()))
		os.Exit(1)
	}

	monitor, err := resultlog.NewMonitor(cfg.Sink.ResultsPath, myAddr.ID, lgr.Named("resultlog"))
	if err != nil {
		lgr.Error("failed to open results log", logger.F("error", err.Error()))
		os.Exit(1)
	}
	defer monitor.Close()

	table := forwarding.New()
	plane := control.New(myAddr, budget, lnk, table, monitor, lgr.Named("control"), cfg.Keepalive())
	r := router.New(myAddr, lnk, table, plane, monitor, lgr.Named("router"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r.Start(ctx)
	lgr.Info("node started")

	isSink := cfg.Sink.ID == cfg.Node.ID
	sinkID := domain.ID(cfg.Sink.ID)

	if isSink {
		sinkLog, err := resultlog.NewSinkLog(cfg.Sink.SinkLogPath)
		if err != nil {
			lgr.Error("failed to open sink log", logger.F("error", err.Error()))
			os.Exit(1)
		}
		defer sinkLog.Close()
		go runSink(ctx, r, sinkLog, lgr.Named("sink"))
	} else if cfg.Sink.SendIntervalSecs > 0 {
		gen := sensing.NewMockGenerator(myAddr.ID, rand.New(rand.NewSource(int64(myAddr.ID))))
		interval := time.Duration(cfg.Sink.SendIntervalSecs) * time.Second
		sensor := sensing.NewSensor(gen, r, sinkID, interval, lgr.Named("sensor"))
		go sensor.Run(ctx)
	}

	if *repl {
		go shell.New(myAddr, plane).Run()
	}

	<-ctx.Done()
	lgr.Info("shutdown signal received, stopping node")
	if err := r.Close(); err != nil {
		lgr.Warn("error closing router", logger.F("error", err.Error()))
	}
}

func runSink(ctx context.Context, r *router.Router, sinkLog *resultlog.SinkLog, lgr logger.Logger) {
	for {
		data, srcID, err := r.ReceiveFrom(ctx)
		if err != nil {
			return
		}
		reading, err := sensing.ParseReading(data)
		if err != nil {
			lgr.Warn("dropping malformed reading", logger.F("error", err.Error()), logger.F("from", srcID.String()))
			continue
		}
		if err := sinkLog.Record(reading); err != nil {
			lgr.Warn("failed to record reading", logger.F("error", err.Error()))
			continue
		}
		lgr.Info("received reading", logger.F("from", srcID.String()), logger.F("temperature", reading.Temperature))
	}
}
