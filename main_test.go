package main

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/yt-download-server/internal/catalog"
	"github.com/ytget/yt-download-server/internal/config"
	"github.com/ytget/yt-download-server/internal/logging"
)

func TestOpenCatalogDisabled(t *testing.T) {
	cat, err := openCatalog(config.Defaults(), logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, catalog.Noop{}, cat)
}

func TestForgetArtifactDropsCatalogEntry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	settings := config.Defaults()
	settings.RedisURL = "redis://" + mr.Addr()
	cat, err := openCatalog(settings, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	ctx := context.Background()
	id := "0b5e3c1e-7d0a-4f3b-9a59-2d2f3c4b5a69"
	require.NoError(t, cat.Put(ctx, catalog.Entry{ID: id, DisplayName: "x.mp4", CreatedAt: time.Now()}))

	forget := forgetArtifact(cat, logging.Discard())
	forget(id + ".mp4")
	forget("")

	_, err = cat.Get(ctx, id)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestResolveExtractorPrefersConfiguredPath(t *testing.T) {
	settings := config.Defaults()
	settings.YTDLPPath = "/opt/yt-dlp"
	settings.YTDLPAutoInstall = true

	executable, err := resolveExtractor(context.Background(), settings, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "/opt/yt-dlp", executable)

	executable, err = resolveExtractor(context.Background(), config.Defaults(), logging.Discard())
	require.NoError(t, err)
	assert.Empty(t, executable)
}
