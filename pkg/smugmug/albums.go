package smugmug

import (
	"context"
	"strings"

	errs "smdl/pkg/errors"
)

// Selector chooses which albums to mirror. Names take precedence over
// Folder; an empty selector selects every album.
type Selector struct {
	// Names are exact album names, compared after trimming whitespace
	Names []string
	// Folder selects albums whose URL path contains it
	Folder string
}

// ParseAlbumNames splits a '$'-separated album list, trimming each name
// and dropping empty ones.
func ParseAlbumNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, "$") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// IsEmpty reports whether the selector selects everything
func (s Selector) IsEmpty() bool {
	return len(s.Names) == 0 && s.Folder == ""
}

// Matches reports whether album is selected
func (s Selector) Matches(album Album) bool {
	if len(s.Names) > 0 {
		name := strings.TrimSpace(album.Name)
		for _, n := range s.Names {
			if strings.TrimSpace(n) == name {
				return true
			}
		}
		return false
	}
	if s.Folder != "" {
		return strings.Contains(album.URLPath, s.Folder)
	}
	return true
}

// String describes the selector for logs
func (s Selector) String() string {
	switch {
	case len(s.Names) > 0:
		return "albums " + strings.Join(s.Names, ", ")
	case s.Folder != "":
		return "folder " + s.Folder
	default:
		return "all albums"
	}
}

// ListAlbums returns the user's albums matching sel, in server order. If
// the album list cannot be fetched or is absent, the account is treated as
// not found. No matches yields an empty slice and no error.
func (c *Client) ListAlbums(ctx context.Context, username string, sel Selector) ([]Album, error) {
	path := AlbumListPath(username)

	all, err := paginate[Album](ctx, c, path, "AlbumList")
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNotFound, err, "user %q not found or album list inaccessible", username).WithPath(path)
	}
	if !all.present {
		return nil, errs.New(errs.ErrorTypeNotFound, "user %q has no accessible album list", username).WithPath(path)
	}

	selected := make([]Album, 0, len(all.items))
	for _, album := range all.items {
		if sel.Matches(album) {
			selected = append(selected, album)
		}
	}

	c.logger.InfoWithFields("Albums listed", map[string]interface{}{
		"username": username,
		"total":    len(all.items),
		"selected": len(selected),
		"selector": sel.String(),
	})
	return selected, nil
}
