// cmd/discord/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/keshon/discodrome/internal/config"
	"github.com/keshon/discodrome/internal/discord"
	"github.com/keshon/discodrome/internal/subsonic"
)

const appName = "Discodrome"

func main() {
	log.Infof("Starting %v bot...", appName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		log.Fatal("Invalid configuration", "err", err)
	}
	if err := cfg.RequireDiscord(); err != nil {
		log.Fatal("Invalid configuration", "err", err)
	}
	log.SetLevel(cfg.Level())

	client := subsonic.New(cfg.Subsonic(), subsonic.WithLogger(log.Default().WithPrefix("subsonic")))
	defer client.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 15*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		log.Warn("Music server did not answer ping", "server", cfg.SubsonicServer, "err", err)
	} else {
		log.Info("Music server reachable", "server", cfg.SubsonicServer)
	}
	pingCancel()

	errCh := make(chan error, 1)
	go func() {
		if err := discord.StartBot(ctx, cfg, client); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info("Received signal, shutting down...", "signal", s)
		cancel()
		// let the bot leave voice channels
		if err, ok := <-errCh; ok && err != nil {
			log.Error("Discord bot error", "err", err)
		}
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("Discord bot error", "err", err)
		}
		cancel()
	}

	log.Info("Discord bot exited cleanly")
}
