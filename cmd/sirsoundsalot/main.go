// cmd/sirsoundsalot/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/sirsoundsalot/internal/command/music"
	"github.com/keshon/sirsoundsalot/internal/config"
	"github.com/keshon/sirsoundsalot/internal/discord"
	"github.com/keshon/sirsoundsalot/internal/logging"
	"github.com/keshon/sirsoundsalot/internal/music/fetch"
	"github.com/keshon/sirsoundsalot/internal/music/player"
	"github.com/keshon/sirsoundsalot/internal/music/queue"
	"github.com/keshon/sirsoundsalot/internal/music/sources"
	"github.com/keshon/sirsoundsalot/internal/statusserver"
	"github.com/keshon/sirsoundsalot/internal/storage"
	v "github.com/keshon/sirsoundsalot/internal/version"
	"github.com/keshon/sirsoundsalot/pkg/cmd"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logCloser, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer logCloser.Close()

	log.Printf("[INFO] Starting %v bot...", v.AppName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fetcher, err := fetch.New(fetch.Config{
		Dir:          cfg.Fetch.CacheDir,
		MinRate:      cfg.Fetch.MinRate,
		MinBytes:     cfg.Fetch.MinBytes,
		Window:       cfg.Fetch.Window,
		StallTimeout: cfg.Fetch.StallTimeout,
		Proxy:        cfg.Resolve.Proxy,
		FFmpegPath:   cfg.Fetch.FFmpegPath,
		YTDLPPath:    cfg.Fetch.YTDLPPath,
	})
	if err != nil {
		log.Fatal(err)
	}

	httpClient, err := sources.NewHTTPClient(cfg.Resolve.Proxy)
	if err != nil {
		log.Fatal(err)
	}
	resolver := sources.NewResolver(
		sources.NewYouTubeTitles(httpClient),
		[]sources.Searcher{sources.NewYouTubeSearch(httpClient), sources.NewMusicSearch()},
		sources.Options{TitleTimeout: cfg.Resolve.Timeout},
	)

	dg, err := discord.NewSession(cfg.DiscordToken)
	if err != nil {
		log.Fatal(err)
	}
	voice := discord.NewVoice(dg)

	sched := player.New(queue.NewStore(), fetcher, voice, player.Config{FetchRetries: cfg.Fetch.Retries})

	registry := cmd.NewRegistry()
	if err := music.Register(registry); err != nil {
		log.Fatal(err)
	}

	bot := discord.NewBot(cfg, dg, discord.Deps{
		Scheduler: sched,
		Resolver:  resolver,
		Storage:   store,
		Commands:  registry,
		Voice:     voice,
	})

	errCh := make(chan error, 2)
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	if cfg.StatusAddr != "" {
		go func() {
			if err := statusserver.Run(ctx, cfg.StatusAddr, statusserver.NewRouter(sched)); err != nil {
				errCh <- err
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("[INFO] Received signal %s, shutting down...\n", s)
	case err := <-errCh:
		log.Println("[ERR] Bot error:", err)
	}

	// Leave voice channels while the gateway is still open.
	sched.Close()
	cancel()
	<-botDone

	log.Println("[INFO] Discord bot exited cleanly")
}
