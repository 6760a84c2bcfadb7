package store

import "context"

// SeedSet is the fixed clip catalog inserted when the video collection is
// empty. Keys under clips/ are resolved to presigned URLs by the media
// layer when object storage is configured.
var SeedSet = []Video{
	{ID: 1, Src: "clips/rooftop-sunset.mp4", Username: "maya.films", Caption: "golden hour never misses", Music: "lofi beats - midnight run"},
	{ID: 2, Src: "clips/latte-art.mp4", Username: "barista.ben", Caption: "tulip pour on the first try", Music: "jazzhop - morning shift"},
	{ID: 3, Src: "clips/skate-line.mp4", Username: "kickflip.kat", Caption: "finally landed the whole line", Music: "garage punk - no brakes"},
	{ID: 4, Src: "clips/street-noodles.mp4", Username: "eats.with.eli", Caption: "best 2am noodles in town", Music: "city pop - neon night"},
	{ID: 5, Src: "clips/puppy-zoomies.mp4", Username: "maya.films", Caption: "he heard the word walk", Music: "happy ukulele - tail wag"},
	{ID: 6, Src: "clips/rainy-window.mp4", Username: "slow.tv", Caption: "thirty seconds of calm", Music: "ambient - rain on glass"},
}

// EnsureSeeded populates the video collection once. The count guard makes
// repeat calls no-ops; the bootstrap path is low traffic, so it does not
// need a stronger exactly-once guarantee.
func EnsureSeeded(ctx context.Context, s VideoStore) (bool, error) {
	count, err := s.CountVideos(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := s.SeedVideos(ctx, SeedSet); err != nil {
		return false, err
	}
	return true, nil
}
