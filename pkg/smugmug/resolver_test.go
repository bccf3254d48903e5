package smugmug

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "smdl/pkg/errors"
	"smdl/pkg/logger"
)

func entryWith(caps ...string) MediaEntry {
	e := MediaEntry{
		FileName:    "clip.mp4",
		URIs:        map[string]URIRef{},
		ArchivedURI: "https://archive.example/clip.mp4",
	}
	for _, c := range caps {
		e.URIs[c] = URIRef{URI: "/api/v2/image/x!" + c}
	}
	return e
}

func TestResolvePreference(t *testing.T) {
	f := newFakeFetcher().
		on("/api/v2/image/x!LargestVideo", `{"Response":{"LargestVideo":{"Url":"https://video.example/clip.mp4","Size":1}}}`).
		on("/api/v2/image/x!ImageDownload", `{"Response":{"ImageDownload":{"Url":"https://photos.example/original.jpg"}}}`).
		on("/api/v2/image/x!LargestImage", `{"Response":{"LargestImage":{"Url":"https://photos.example/X5.jpg"}}}`)
	c := NewClient(f, 0, logger.NewNopLogger())

	tests := []struct {
		name     string
		entry    MediaEntry
		expected string
	}{
		{"video beats poster frame", entryWith("LargestImage", "LargestVideo"), "https://video.example/clip.mp4"},
		{"original beats largest image", entryWith("LargestImage", "ImageDownload"), "https://photos.example/original.jpg"},
		{"largest image alone", entryWith("LargestImage"), "https://photos.example/X5.jpg"},
		{"archived fallback", entryWith(), "https://archive.example/clip.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := c.Resolve(context.Background(), tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, url)
		})
	}

	assert.Equal(t, 1, f.callCount("/api/v2/image/x!LargestVideo"))
	assert.Equal(t, 1, f.callCount("/api/v2/image/x!ImageDownload"))
}

func TestResolveArchivedDoesNotFetch(t *testing.T) {
	f := newFakeFetcher()
	c := NewClient(f, 0, logger.NewNopLogger())

	url, err := c.Resolve(context.Background(), entryWith())

	require.NoError(t, err)
	assert.Equal(t, "https://archive.example/clip.mp4", url)
	assert.Equal(t, 0, f.totalCalls())
}

func TestResolveErrors(t *testing.T) {
	t.Run("no source at all", func(t *testing.T) {
		c := NewClient(newFakeFetcher(), 0, logger.NewNopLogger())
		_, err := c.Resolve(context.Background(), MediaEntry{FileName: "lost.jpg"})
		require.Error(t, err)
		assert.Equal(t, errs.ErrorTypeResolve, errs.TypeOf(err))
	})

	t.Run("missing Url", func(t *testing.T) {
		f := newFakeFetcher().on("/api/v2/image/x!LargestImage", `{"Response":{"LargestImage":{"Width":10}}}`)
		c := NewClient(f, 0, logger.NewNopLogger())
		_, err := c.Resolve(context.Background(), entryWith("LargestImage"))
		require.Error(t, err)
		assert.Equal(t, errs.ErrorTypeResolve, errs.TypeOf(err))
	})

	t.Run("capability absent from response", func(t *testing.T) {
		f := newFakeFetcher().on("/api/v2/image/x!ImageDownload", `{"Response":{}}`)
		c := NewClient(f, 0, logger.NewNopLogger())
		_, err := c.Resolve(context.Background(), entryWith("ImageDownload"))
		require.Error(t, err)
		assert.Equal(t, errs.ErrorTypeResolve, errs.TypeOf(err))
	})

	t.Run("fetch failure propagates", func(t *testing.T) {
		f := newFakeFetcher().fail("/api/v2/image/x!LargestVideo")
		c := NewClient(f, 0, logger.NewNopLogger())
		_, err := c.Resolve(context.Background(), entryWith("LargestVideo", "LargestImage"))
		require.Error(t, err)
		assert.Equal(t, errs.ErrorTypeFetch, errs.TypeOf(err))
		assert.Equal(t, 0, f.callCount("/api/v2/image/x!LargestImage"))
	})
}

func TestPreferredCapabilityIgnoresEmptyURIs(t *testing.T) {
	e := MediaEntry{URIs: map[string]URIRef{
		"LargestVideo": {URI: ""},
		"LargestImage": {URI: "/api/v2/image/x!largestimage"},
	}}

	capability, ref, ok := e.PreferredCapability()
	require.True(t, ok)
	assert.Equal(t, "LargestImage", capability)
	assert.Equal(t, "/api/v2/image/x!largestimage", ref.URI)
}
