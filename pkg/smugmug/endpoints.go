package smugmug

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultAPIBaseURL is prefixed to every relative API path
	DefaultAPIBaseURL = "https://www.smugmug.com"

	// DefaultAccountURL is the account landing page; {username} is substituted
	DefaultAccountURL = "https://{username}.smugmug.com"

	// AuthServicePath is the legacy JSON-RPC endpoint used for password login
	AuthServicePath = "/services/api/json/1.4.0/"

	// SessionCookieName carries an authenticated session
	SessionCookieName = "SMSESS"

	albumListPathFormat = "/api/v2/folder/user/%s!albumlist"
	imagesSuffix        = "!images"
)

// Endpoints locates the SmugMug hosts. Tests point both at an httptest server.
type Endpoints struct {
	APIBaseURL string
	AccountURL string
}

// DefaultEndpoints returns the production SmugMug endpoints
func DefaultEndpoints() Endpoints {
	return Endpoints{
		APIBaseURL: DefaultAPIBaseURL,
		AccountURL: DefaultAccountURL,
	}
}

// AccountHome returns the account landing page URL, with a trailing slash
func (e Endpoints) AccountHome(username string) string {
	base := strings.ReplaceAll(e.AccountURL, "{username}", url.PathEscape(username))
	return strings.TrimRight(base, "/") + "/"
}

// AuthService returns the login endpoint on the account host
func (e Endpoints) AuthService(username string) string {
	return strings.TrimRight(e.AccountHome(username), "/") + AuthServicePath
}

// Resolve turns an API path into an absolute URL. Absolute URLs pass
// through unchanged.
func (e Endpoints) Resolve(pathOrURL string) string {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return pathOrURL
	}
	if !strings.HasPrefix(pathOrURL, "/") {
		pathOrURL = "/" + pathOrURL
	}
	return strings.TrimRight(e.APIBaseURL, "/") + pathOrURL
}

// AlbumListPath returns the API path listing every album of a user
func AlbumListPath(username string) string {
	return fmt.Sprintf(albumListPathFormat, url.PathEscape(username))
}

// AlbumImagesPath returns the API path listing the images of an album
func AlbumImagesPath(albumURI string) string {
	return albumURI + imagesSuffix
}
