package sources

import (
	"context"

	"github.com/raitonoberu/ytmusic"
)

// MusicSearch queries YouTube Music tracks. The client has no context
// support, so cancellation is only checked before the request.
type MusicSearch struct{}

func NewMusicSearch() *MusicSearch { return &MusicSearch{} }

func (m *MusicSearch) Name() string { return "ytmusic" }

func (m *MusicSearch) Search(ctx context.Context, query string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res, err := ytmusic.TrackSearch(query).Next()
	if err != nil {
		return Result{}, err
	}
	for _, v := range res.Tracks {
		if v.VideoID == "" {
			continue
		}
		title := v.Title
		if len(v.Artists) > 0 && v.Artists[0].Name != "" {
			title = v.Artists[0].Name + " - " + v.Title
		}
		return Result{URL: watchURL(v.VideoID), Title: title}, nil
	}
	return Result{}, ErrNoResults
}
