package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emonode/emonode/gateway"
	"github.com/emonode/emonode/proto"
)

func main() {
	addr := flag.String("addr", ":9120", "listen address")
	group := flag.Int("group", 210, "network group to decode (0-255)")
	advertise := flag.Bool("advertise", true, "announce the gateway over mDNS")
	flag.Parse()

	logger := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(logger))

	g := gateway.New(gateway.Config{
		Addr:      *addr,
		Group:     byte(*group),
		Advertise: *advertise,
	})

	g.OnPayload(func(src byte, payload []byte) {
		reading, err := proto.DecodePayload(payload)
		if err != nil {
			slog.Warn("Frame body is not a reading", "src", src, "error", err)
			return
		}
		slog.Info("Reading received",
			"node", src,
			"current_centiamps", reading.CurrentCentiamps,
			"on", reading.OnOff,
			"supply_mv", reading.SupplyMillivolts)
	})

	go func() {
		if err := g.Start(); err != nil {
			slog.Error("Gateway failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("Shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	g.Shutdown(shutdownCtx)
}
