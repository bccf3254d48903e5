package smugmug

import (
	"context"
	"encoding/json"

	errs "smdl/pkg/errors"
	"smdl/pkg/logger"
)

// DefaultMaxPages bounds how many NextPage cursors a listing follows
const DefaultMaxPages = 10000

// JSONFetcher is the single path through which API payloads are obtained
type JSONFetcher interface {
	GetJSON(ctx context.Context, pathOrURL string) (json.RawMessage, error)
}

// Client enumerates albums and media and resolves download URLs
type Client struct {
	fetcher  JSONFetcher
	maxPages int
	logger   logger.Logger
}

// NewClient creates a client on top of a fetcher. maxPages <= 0 uses
// DefaultMaxPages.
func NewClient(fetcher JSONFetcher, maxPages int, log logger.Logger) *Client {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Client{
		fetcher:  fetcher,
		maxPages: maxPages,
		logger:   logger.OrDefault(log).WithField("component", "smugmug"),
	}
}

// listing is the result of walking a paginated collection
type listing[T any] struct {
	items []T
	// present is false when the first page lacked the collection field
	present bool
	// truncated is set when a later page could not be fetched
	truncated bool
}

// paginate fetches path, decodes Response.<field> as []T and follows
// Response.Pages.NextPage. A failure on the first page is returned; a
// failure on a later page stops the walk and keeps what was collected.
func paginate[T any](ctx context.Context, c *Client, path, field string) (listing[T], error) {
	var out listing[T]

	payload, err := c.fetcher.GetJSON(ctx, path)
	if err != nil {
		return out, err
	}
	env, err := decodeEnvelope(payload)
	if err != nil {
		return out, errs.Wrap(errs.ErrorTypeExtraction, err, "unexpected payload").WithPath(path)
	}

	raw, ok := env.field(field)
	if !ok {
		return out, nil
	}
	out.present = true
	if err := json.Unmarshal(raw, &out.items); err != nil {
		return out, errs.Wrap(errs.ErrorTypeExtraction, err, "decode %s", field).WithPath(path)
	}

	seen := map[string]bool{path: true}
	next := env.nextPage()
	for pages := 1; next != ""; pages++ {
		log := c.logger.WithFields(map[string]interface{}{
			"path":      path,
			"next_page": next,
			"collected": len(out.items),
		})
		if seen[next] {
			log.Warn("Pagination cursor repeated, stopping")
			break
		}
		if pages >= c.maxPages {
			log.WithField("max_pages", c.maxPages).Warn("Page limit reached, stopping")
			out.truncated = true
			break
		}
		seen[next] = true

		payload, err := c.fetcher.GetJSON(ctx, next)
		if err != nil {
			log.WithError(err).Warn("Could not fetch next page, listing truncated")
			out.truncated = true
			break
		}
		env, err := decodeEnvelope(payload)
		if err != nil {
			log.WithError(err).Warn("Unexpected page payload, listing truncated")
			out.truncated = true
			break
		}

		if raw, ok := env.field(field); ok {
			var page []T
			if err := json.Unmarshal(raw, &page); err != nil {
				log.WithError(err).Warn("Could not decode page, listing truncated")
				out.truncated = true
				break
			}
			out.items = append(out.items, page...)
		}
		next = env.nextPage()
	}

	return out, nil
}
