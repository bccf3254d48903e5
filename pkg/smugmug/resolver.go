package smugmug

import (
	"context"
	"encoding/json"

	errs "smdl/pkg/errors"
)

// Capabilities in order of preference. The video capability comes first so
// videos are never saved as their poster frame.
var capabilityPreference = []string{"LargestVideo", "ImageDownload", "LargestImage"}

// PreferredCapability returns the most preferred sub-resource the entry
// advertises, or false when only the archived URI is left.
func (e MediaEntry) PreferredCapability() (string, URIRef, bool) {
	for _, capability := range capabilityPreference {
		if ref, ok := e.URIs[capability]; ok && ref.URI != "" {
			return capability, ref, true
		}
	}
	return "", URIRef{}, false
}

// Resolve determines the download URL of an entry. Without any preferred
// capability the archived URI is returned and nothing is fetched.
func (c *Client) Resolve(ctx context.Context, entry MediaEntry) (string, error) {
	capability, ref, ok := entry.PreferredCapability()
	if !ok {
		if entry.ArchivedURI == "" {
			return "", errs.New(errs.ErrorTypeResolve, "no downloadable source for %q", entry.FileName)
		}
		return entry.ArchivedURI, nil
	}

	payload, err := c.fetcher.GetJSON(ctx, ref.URI)
	if err != nil {
		return "", err
	}

	env, err := decodeEnvelope(payload)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeResolve, err, "unexpected %s payload", capability).WithPath(ref.URI)
	}
	raw, ok := env.field(capability)
	if !ok {
		return "", errs.New(errs.ErrorTypeResolve, "response lacks %s", capability).WithPath(ref.URI)
	}

	var resource struct {
		URL string `json:"Url"`
	}
	if err := json.Unmarshal(raw, &resource); err != nil || resource.URL == "" {
		return "", errs.New(errs.ErrorTypeResolve, "%s has no Url", capability).WithPath(ref.URI)
	}
	return resource.URL, nil
}
