package sources

import (
	"context"
	"net/http"

	"github.com/kkdai/youtube/v2"
	"github.com/ppalone/ytsearch"
)

// YouTubeTitles looks up video titles through the YouTube player API.
type YouTubeTitles struct {
	client *youtube.Client
}

func NewYouTubeTitles(httpClient *http.Client) *YouTubeTitles {
	return &YouTubeTitles{client: &youtube.Client{HTTPClient: httpClient}}
}

func (y *YouTubeTitles) Title(ctx context.Context, link string) (string, error) {
	video, err := y.client.GetVideoContext(ctx, link)
	if err != nil {
		return "", err
	}
	return video.Title, nil
}

// YouTubeSearch queries YouTube's web search.
type YouTubeSearch struct {
	httpClient *http.Client
}

func NewYouTubeSearch(httpClient *http.Client) *YouTubeSearch {
	return &YouTubeSearch{httpClient: httpClient}
}

func (y *YouTubeSearch) Name() string { return "youtube" }

func (y *YouTubeSearch) Search(ctx context.Context, query string) (Result, error) {
	res, err := ytsearch.NewClient(y.httpClient).Search(ctx, query)
	if err != nil {
		return Result{}, err
	}
	for _, v := range res.Results {
		if v.VideoID != "" {
			return Result{URL: watchURL(v.VideoID), Title: v.Title}, nil
		}
	}
	return Result{}, ErrNoResults
}
