package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/emonode/emonode/config"
	"github.com/emonode/emonode/node"
	"github.com/emonode/emonode/radio"
	"github.com/emonode/emonode/sched"
	"github.com/emonode/emonode/sensor"
	"github.com/emonode/emonode/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the node configuration file")
	flag.Parse()

	logger := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(logger))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	url := cfg.Bridge.URL
	if url == "" {
		gw, err := radio.DiscoverGateway(5 * time.Second)
		if err != nil {
			slog.Error("Gateway discovery failed", "error", err)
			os.Exit(1)
		}
		url = gw.URL()
	}

	driver := radio.NewBridgeDriver(url)
	if err := driver.Connect(); err != nil {
		slog.Error("Failed to connect to radio gateway", "error", err)
		os.Exit(1)
	}
	defer driver.Close()

	link := radio.NewLink(driver, byte(cfg.Node.Group), byte(cfg.Node.ID))
	scheduler := sched.NewScheduler(sched.TimerWatchdog{})

	adc := sensor.NewSimulatedADC(cfg.Sensor.SimAmplitude, cfg.Sensor.SimSupplyRaw)
	sampler := sensor.NewSampler(sensor.Config{
		Channel:       cfg.Sensor.Channel,
		Calibration:   cfg.Sensor.Calibration,
		OnThreshold:   cfg.Sensor.OnThreshold,
		ScaleConstant: cfg.Sensor.ScaleConstant,
	}, adc)

	metrics := node.NewMetrics(prometheus.DefaultRegisterer)

	var sender node.Sender
	if cfg.Radio.AckMode {
		acked := node.NewAckedSender(link, scheduler,
			cfg.Radio.RetryLimit, cfg.Radio.RetryPeriodSec, cfg.Radio.AckWaitMS)
		acked.SetMetrics(metrics)
		sender = acked
	} else {
		sender = node.NewUnackedSender(link)
	}

	n := node.New(sampler, sender, scheduler, cfg.Node.CyclePeriodMS)
	n.SetMetrics(metrics)
	n.SetIdentity(cfg.Node.ID, cfg.Node.Group, cfg.Radio.AckMode)

	webSrv := web.NewServer(cfg.Web.Addr, n, prometheus.DefaultGatherer)
	go func() {
		if err := webSrv.Start(); err != nil {
			slog.Error("Diagnostic web server failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Node stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	webSrv.Shutdown(shutdownCtx)
}
