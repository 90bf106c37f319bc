// Package sources turns what a user typed into a playable track: a direct
// link is taken as is, anything else is searched for.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/keshon/sirsoundsalot/internal/music/queue"
	"github.com/keshon/sirsoundsalot/pkg/retrylimit"
)

var (
	ErrResolution = errors.New("could not resolve track")
	ErrNoResults  = errors.New("no results")
)

// Result is a single search hit.
type Result struct {
	URL   string
	Title string
}

// Searcher finds the best match for a free-text query.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) (Result, error)
}

// TitleLookup fetches the display title of a direct link.
type TitleLookup interface {
	Title(ctx context.Context, link string) (string, error)
}

type Options struct {
	// TitleTimeout bounds the title lookup of direct links.
	TitleTimeout time.Duration
	Retry        retrylimit.RetryConfig
	Limiter      *retrylimit.AdaptiveLimiter
}

type Resolver struct {
	titles    TitleLookup
	searchers []Searcher
	opts      Options
}

// NewResolver builds a resolver that tries searchers in order. titles may be nil,
// in which case direct links are titled with the link itself.
func NewResolver(titles TitleLookup, searchers []Searcher, opts Options) *Resolver {
	if opts.TitleTimeout <= 0 {
		opts.TitleTimeout = 5 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retrylimit.DefaultRetryConfig()
	}
	if opts.Limiter == nil {
		opts.Limiter = retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5)
	}
	return &Resolver{titles: titles, searchers: searchers, opts: opts}
}

// Resolve maps tokens to a track. When the first token is a link it is used
// unchanged; otherwise all tokens form the search query.
func (r *Resolver) Resolve(ctx context.Context, tokens []string) (queue.Track, error) {
	if len(tokens) == 0 {
		return queue.Track{}, fmt.Errorf("%w: empty query", ErrResolution)
	}

	if isURL(tokens[0]) {
		link := tokens[0]
		return queue.Track{URL: link, Title: r.title(ctx, link)}, nil
	}

	query := strings.TrimSpace(strings.Join(tokens, " "))
	if query == "" {
		return queue.Track{}, fmt.Errorf("%w: empty query", ErrResolution)
	}

	var errs []error
	for _, s := range r.searchers {
		var res Result
		err := retrylimit.WithRetryConfig(ctx, func() error {
			var err error
			res, err = s.Search(ctx, query)
			if errors.Is(err, ErrNoResults) {
				return retrylimit.Fatal(err)
			}
			return err
		}, r.opts.Limiter, r.opts.Retry)
		if err == nil {
			log.Printf("[Resolver] %s: %q -> %s", s.Name(), query, res.URL)
			return queue.Track{URL: res.URL, Title: res.Title}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return queue.Track{}, fmt.Errorf("%w: %w", ErrResolution, ctxErr)
		}
		log.Printf("[WARN] [Resolver] %s search for %q failed: %v", s.Name(), query, err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}

	if len(errs) == 0 {
		return queue.Track{}, fmt.Errorf("%w: no search backend configured", ErrResolution)
	}
	return queue.Track{}, fmt.Errorf("%w for %q: %w", ErrResolution, query, errors.Join(errs...))
}

// title never fails; on any error the link doubles as its title.
func (r *Resolver) title(ctx context.Context, link string) string {
	if r.titles == nil || !isYouTubeURL(link) {
		return link
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.TitleTimeout)
	defer cancel()

	title, err := r.titles.Title(ctx, CleanVideoURL(link))
	if err != nil || strings.TrimSpace(title) == "" {
		if err != nil {
			log.Printf("[WARN] [Resolver] title lookup for %s failed: %v", link, err)
		}
		return link
	}
	return title
}
