// Package smugmug talks to SmugMug's web API as served to browsers: every
// API page is HTML whose last <pre> block holds the JSON document.
//
// The pieces compose in a fixed order:
//
//	session, _ := smugmug.NewSession(smugmug.SessionConfig{UserAgent: ua}, log)
//	_ = session.Authenticate(ctx, "alice", smugmug.Credentials{Password: pw})
//	fetcher := smugmug.NewFetcher(session, smugmug.FetcherConfig{Policy: policy}, log)
//	client := smugmug.NewClient(fetcher, 0, log)
//
//	albums, err := client.ListAlbums(ctx, "alice", smugmug.Selector{Folder: "/Family"})
//	entries, err := client.ListMedia(ctx, albums[0])
//	url, err := client.Resolve(ctx, entries[0])
//
// Every API call goes through the Fetcher, which retries transport and
// extraction failures with exponential backoff before giving up with a
// fetch error.
package smugmug
