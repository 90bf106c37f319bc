// Package statusserver exposes a read-only HTTP view of guild queues.
package statusserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/keshon/sirsoundsalot/internal/music/player"
	"github.com/keshon/sirsoundsalot/internal/music/queue"
	"github.com/keshon/sirsoundsalot/internal/version"
)

// View is what the server reads from the scheduler.
type View interface {
	Guilds() []string
	Queue(guildID string) ([]queue.Entry, bool)
	NowPlaying(guildID string) (queue.Track, bool)
	State(guildID string) player.State
	Jobs() string
}

type guildSummary struct {
	GuildID string `json:"guild_id"`
	State   string `json:"state"`
	Queued  int    `json:"queued"`
}

type queueResponse struct {
	GuildID    string        `json:"guild_id"`
	State      string        `json:"state"`
	NowPlaying *queue.Track  `json:"now_playing,omitempty"`
	Tracks     []queue.Entry `json:"tracks"`
}

// NewRouter builds the gin engine serving view.
func NewRouter(view View) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "app": version.AppName})
	})

	r.GET("/guilds", func(c *gin.Context) {
		guilds := make([]guildSummary, 0)
		for _, id := range view.Guilds() {
			entries, _ := view.Queue(id)
			guilds = append(guilds, guildSummary{GuildID: id, State: view.State(id).String(), Queued: len(entries)})
		}
		c.JSON(http.StatusOK, gin.H{"guilds": guilds})
	})

	r.GET("/guilds/:guildID/queue", func(c *gin.Context) {
		id := c.Param("guildID")
		entries, known := view.Queue(id)
		if !known {
			c.JSON(http.StatusNotFound, gin.H{"error": queue.MsgUnknownGuild})
			return
		}

		resp := queueResponse{GuildID: id, State: view.State(id).String(), Tracks: entries}
		if resp.Tracks == nil {
			resp.Tracks = []queue.Entry{}
		}
		if t, ok := view.NowPlaying(id); ok {
			resp.NowPlaying = &t
		}
		c.JSON(http.StatusOK, resp)
	})

	r.GET("/jobs", func(c *gin.Context) {
		c.String(http.StatusOK, view.Jobs())
	})

	return r
}

// Run serves handler on addr until ctx is done.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] Status server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
