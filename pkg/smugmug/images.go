package smugmug

import (
	"context"
)

// ListMedia returns every media entry of an album, following pagination.
// An album without an image list yields an empty slice. If a later page
// fails, the entries gathered so far are returned without error.
func (c *Client) ListMedia(ctx context.Context, album Album) ([]MediaEntry, error) {
	path := AlbumImagesPath(album.URI)

	res, err := paginate[MediaEntry](ctx, c, path, "AlbumImage")
	if err != nil {
		return nil, err
	}

	entries := res.items
	if entries == nil {
		entries = []MediaEntry{}
	}

	fields := map[string]interface{}{
		"album": album.Name,
		"items": len(entries),
	}
	if res.truncated {
		c.logger.WarnWithFields("Album listing incomplete", fields)
	} else {
		c.logger.DebugWithFields("Album listed", fields)
	}
	return entries, nil
}
