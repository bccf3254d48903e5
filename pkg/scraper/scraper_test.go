package scraper

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smdl/internal/downloader"
	"smdl/pkg/config"
	errs "smdl/pkg/errors"
	"smdl/pkg/logger"
	"smdl/pkg/smugmug"
	"smdl/pkg/storage"
	"smdl/pkg/ui"
)

// accountServer serves a small SmugMug account: two albums, one of them
// paginated, with media resolved through each capability.
type accountServer struct {
	*httptest.Server
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	hits   map[string]int
}

func newAccountServer(t *testing.T) *accountServer {
	t.Helper()
	s := &accountServer{routes: map[string]http.HandlerFunc{}, hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		s.mu.Lock()
		s.hits[key]++
		h, ok := s.routes[key]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *accountServer) page(path, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body><pre>%s</pre></body></html>", html.EscapeString(payload))
	}
}

func (s *accountServer) file(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}
}

func (s *accountServer) broken(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (s *accountServer) hitCount(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.hits {
		if strings.HasPrefix(k, prefix) {
			n += v
		}
	}
	return n
}

func (s *accountServer) seed() {
	s.page("/api/v2/folder/user/jdoe!albumlist", `{"Response":{"AlbumList":[
		{"Name":"Trip","UrlPath":"/Travel/Trip","Uri":"/api/v2/album/T1"},
		{"Name":"Party","UrlPath":"/Events/Party","Uri":"/api/v2/album/P1"}]}}`)

	s.page("/api/v2/album/T1!images", `{"Response":{
		"AlbumImage":[
			{"FileName":"a.jpg","Uris":{"ImageDownload":{"Uri":"/api/v2/image/a!download"},"LargestImage":{"Uri":"/api/v2/image/a!largest"}}},
			{"FileName":"clip.mp4","Uris":{"LargestVideo":{"Uri":"/api/v2/image/c!video"},"LargestImage":{"Uri":"/api/v2/image/c!largest"}}}],
		"Pages":{"NextPage":"/api/v2/album/T1!images?start=3&count=2"}}}`)
	s.page("/api/v2/album/T1!images?start=3&count=2", fmt.Sprintf(`{"Response":{
		"AlbumImage":[{"FileName":"My Trip: Day #1.jpg","Uris":{},"ArchivedUri":"%s/archive/d.jpg"}],
		"Pages":{}}}`, s.URL))

	s.page("/api/v2/album/P1!images", `{"Response":{"AlbumImage":[
		{"FileName":"b.jpg","Uris":{"LargestImage":{"Uri":"/api/v2/image/b!largest"}}}]}}`)

	s.page("/api/v2/image/a!download", fmt.Sprintf(`{"Response":{"ImageDownload":{"Url":"%s/photos/a.jpg"}}}`, s.URL))
	s.page("/api/v2/image/c!video", fmt.Sprintf(`{"Response":{"LargestVideo":{"Url":"%s/photos/clip.mp4"}}}`, s.URL))
	s.page("/api/v2/image/b!largest", fmt.Sprintf(`{"Response":{"LargestImage":{"Url":"%s/photos/b.jpg"}}}`, s.URL))

	s.file("/photos/a.jpg", "AAAA")
	s.file("/photos/clip.mp4", "VIDEO")
	s.file("/photos/b.jpg", "BB")
	s.file("/archive/d.jpg", "DDD")
}

func testConfig(t *testing.T, s *accountServer) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SmugMug.APIBaseURL = s.URL
	cfg.SmugMug.AccountURL = s.URL + "/account/{username}"
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Download.ConcurrentDownloads = 3
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	cfg.RateLimit.RequestsPerMinute = 0
	return cfg
}

func newTestScraper(t *testing.T, cfg *config.Config) *Scraper {
	t.Helper()
	s, err := NewFromConfig(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	return s
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunMirrorsAccount(t *testing.T) {
	srv := newAccountServer(t)
	srv.seed()
	cfg := testConfig(t, srv)
	obs := &recordingObserver{}

	s := newTestScraper(t, cfg)
	s.SetObserver(obs)
	summary, err := s.Run(context.Background(), Options{Username: "jdoe"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Counts.Albums)
	assert.Equal(t, 4, summary.Counts.Downloaded)
	assert.Equal(t, 0, summary.Counts.Failed)
	assert.Equal(t, int64(14), summary.Counts.Bytes)
	assert.NotEmpty(t, summary.RunID)
	assert.False(t, summary.Stopped)

	base := cfg.Output.BaseDirectory
	assert.Equal(t, "AAAA", readFile(t, filepath.Join(base, "Travel", "Trip", "a.jpg")))
	assert.Equal(t, "VIDEO", readFile(t, filepath.Join(base, "Travel", "Trip", "clip.mp4")), "video capability wins over largest image")
	assert.Equal(t, "DDD", readFile(t, filepath.Join(base, "Travel", "Trip", "My Trip_ Day _1.jpg")))
	assert.Equal(t, "BB", readFile(t, filepath.Join(base, "Events", "Party", "b.jpg")))

	assert.Equal(t, 0, srv.hitCount("/api/v2/image/c!largest"))
	assert.Equal(t, []string{"jdoe:2"}, obs.runs)
	assert.Equal(t, []string{"Trip:1/2:3", "Party:2/2:1"}, obs.albums)
	assert.Equal(t, 1, obs.finished)
}

func TestRunIsIdempotent(t *testing.T) {
	srv := newAccountServer(t)
	srv.seed()
	cfg := testConfig(t, srv)

	first, err := newTestScraper(t, cfg).Run(context.Background(), Options{Username: "jdoe"})
	require.NoError(t, err)
	require.Equal(t, 4, first.Counts.Downloaded)

	photoHits := srv.hitCount("/photos/") + srv.hitCount("/archive/")
	resolveHits := srv.hitCount("/api/v2/image/")

	second, err := newTestScraper(t, cfg).Run(context.Background(), Options{Username: "jdoe"})
	require.NoError(t, err)

	assert.Equal(t, 0, second.Counts.Downloaded)
	assert.Equal(t, 4, second.Counts.Skipped)
	assert.Equal(t, photoHits, srv.hitCount("/photos/")+srv.hitCount("/archive/"), "no media fetched on re-run")
	assert.Equal(t, resolveHits, srv.hitCount("/api/v2/image/"), "existing files are not resolved")
}

func TestRunRespectsAlbumSelection(t *testing.T) {
	srv := newAccountServer(t)
	srv.seed()
	cfg := testConfig(t, srv)

	summary, err := newTestScraper(t, cfg).Run(context.Background(), Options{
		Username: "jdoe",
		Selector: smugmug.Selector{Names: []string{"Party"}, Folder: "/Travel"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Counts.Albums)
	assert.FileExists(t, filepath.Join(cfg.Output.BaseDirectory, "Events", "Party", "b.jpg"))
	assert.NoDirExists(t, filepath.Join(cfg.Output.BaseDirectory, "Travel"))
	assert.Equal(t, 0, srv.hitCount("/api/v2/album/T1"))
}

func TestRunIsolatesFailedDownload(t *testing.T) {
	srv := newAccountServer(t)
	srv.seed()
	srv.broken("/photos/b.jpg")
	cfg := testConfig(t, srv)
	cfg.Download.RetryAttempts = 2

	summary, err := newTestScraper(t, cfg).Run(context.Background(), Options{Username: "jdoe"})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Counts.Downloaded)
	assert.Equal(t, 1, summary.Counts.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "b.jpg", summary.Failures[0].File)
	assert.True(t, errs.Is(summary.Failures[0].Err, errs.ErrorTypeDownload))
	assert.Equal(t, 2, srv.hitCount("/photos/b.jpg"))
	assert.NoFileExists(t, filepath.Join(cfg.Output.BaseDirectory, "Events", "Party", "b.jpg"))
}

func TestRunFailsWhenAccountMissing(t *testing.T) {
	srv := newAccountServer(t)
	cfg := testConfig(t, srv)
	obs := &recordingObserver{}

	s := newTestScraper(t, cfg)
	s.SetObserver(obs)
	_, err := s.Run(context.Background(), Options{Username: "ghost"})

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))
	assert.Equal(t, 5, srv.hitCount("/api/v2/folder/user/ghost!albumlist"))
	assert.Equal(t, 1, obs.finished)
	assert.Error(t, obs.finalErr)
}

// fakeSource and fakeSession drive Run without HTTP

type fakeSource struct {
	albums    []smugmug.Album
	media     map[string][]smugmug.MediaEntry
	mediaErr  map[string]error
	listCalls int
}

func (f *fakeSource) ListAlbums(ctx context.Context, username string, sel smugmug.Selector) ([]smugmug.Album, error) {
	var out []smugmug.Album
	for _, a := range f.albums {
		if sel.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeSource) ListMedia(ctx context.Context, album smugmug.Album) ([]smugmug.MediaEntry, error) {
	f.listCalls++
	if err := f.mediaErr[album.URI]; err != nil {
		return nil, err
	}
	return f.media[album.URI], nil
}

func (f *fakeSource) Resolve(ctx context.Context, entry smugmug.MediaEntry) (string, error) {
	return "mem://" + entry.FileName, nil
}

type fakeSession struct {
	authErr error
}

func (f *fakeSession) Authenticate(ctx context.Context, username string, creds smugmug.Credentials) error {
	return f.authErr
}

func (f *fakeSession) Open(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	return io.NopCloser(strings.NewReader(url)), int64(len(url)), nil
}

type recordingObserver struct {
	ui.NopObserver
	mu       sync.Mutex
	runs     []string
	albums   []string
	messages []string
	finished int
	finalErr error
}

func (r *recordingObserver) RunStarted(username string, albums int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, fmt.Sprintf("%s:%d", username, albums))
}

func (r *recordingObserver) AlbumStarted(album string, index, total, items int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.albums = append(r.albums, fmt.Sprintf("%s:%d/%d:%d", album, index, total, items))
}

func (r *recordingObserver) Message(level, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, level+" "+fmt.Sprintf(format, args...))
}

func (r *recordingObserver) RunFinished(counts ui.Counts, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
	r.finalErr = err
}

func newFakeScraper(t *testing.T, src *fakeSource, sess *fakeSession) (*Scraper, *storage.Manager) {
	t.Helper()
	store, err := storage.NewManager(t.TempDir(), 0, logger.NewNopLogger())
	require.NoError(t, err)
	return New(sess, src, store, downloader.PoolConfig{Workers: 2}, logger.NewNopLogger()), store
}

func TestRunContinuesAfterAuthFailure(t *testing.T) {
	src := &fakeSource{
		albums: []smugmug.Album{{Name: "Trip", URLPath: "/Trip", URI: "/a/1"}},
		media:  map[string][]smugmug.MediaEntry{"/a/1": {{FileName: "x.jpg"}}},
	}
	s, store := newFakeScraper(t, src, &fakeSession{authErr: errs.New(errs.ErrorTypeAuth, "login rejected")})
	obs := &recordingObserver{}
	s.SetObserver(obs)

	summary, err := s.Run(context.Background(), Options{Username: "jdoe", Credentials: smugmug.Credentials{Password: "bad"}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Counts.Downloaded)
	assert.FileExists(t, filepath.Join(store.BaseDir(), "Trip", "x.jpg"))
	require.NotEmpty(t, obs.messages)
	assert.Contains(t, obs.messages[0], "Authentication failed")
}

func TestRunIsolatesAlbumListingFailure(t *testing.T) {
	src := &fakeSource{
		albums: []smugmug.Album{
			{Name: "Broken", URLPath: "/Broken", URI: "/a/1"},
			{Name: "Fine", URLPath: "/Fine", URI: "/a/2"},
		},
		media:    map[string][]smugmug.MediaEntry{"/a/2": {{FileName: "ok.jpg"}}},
		mediaErr: map[string]error{"/a/1": errs.New(errs.ErrorTypeFetch, "max retry attempts exceeded")},
	}
	s, _ := newFakeScraper(t, src, &fakeSession{})

	summary, err := s.Run(context.Background(), Options{Username: "jdoe"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Counts.Albums)
	assert.Equal(t, 1, summary.Counts.Downloaded)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "Broken", summary.Failures[0].Album)
	assert.Empty(t, summary.Failures[0].File)
}

func TestRunWithNoMatchingAlbums(t *testing.T) {
	src := &fakeSource{albums: []smugmug.Album{{Name: "Trip", URLPath: "/Trip", URI: "/a/1"}}}
	s, _ := newFakeScraper(t, src, &fakeSession{})
	obs := &recordingObserver{}
	s.SetObserver(obs)

	summary, err := s.Run(context.Background(), Options{Username: "jdoe", Selector: smugmug.Selector{Names: []string{"Nope"}}})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Counts.Albums)
	assert.Equal(t, 0, src.listCalls)
	assert.Empty(t, obs.runs)
	require.Len(t, obs.messages, 1)
	assert.Contains(t, obs.messages[0], ui.LevelWarn)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	src := &fakeSource{
		albums: []smugmug.Album{{Name: "Trip", URLPath: "/Trip", URI: "/a/1"}},
		media:  map[string][]smugmug.MediaEntry{"/a/1": {{FileName: "x.jpg"}}},
	}
	s, store := newFakeScraper(t, src, &fakeSession{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := s.Run(ctx, Options{Username: "jdoe"})
	require.NoError(t, err)

	assert.True(t, summary.Stopped)
	assert.Equal(t, 0, summary.Counts.Albums)
	assert.NoFileExists(t, filepath.Join(store.BaseDir(), "Trip", "x.jpg"))
}
