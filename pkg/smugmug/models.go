package smugmug

import (
	"encoding/json"
	"fmt"
)

// Album is a leaf container of media. URLPath is unique per account and
// doubles as the album's relative directory in the local mirror.
type Album struct {
	Name    string `json:"Name"`
	URLPath string `json:"UrlPath"`
	URI     string `json:"Uri"`
}

// URIRef points at an API sub-resource
type URIRef struct {
	URI string `json:"Uri"`
}

// MediaEntry is a single image or video as listed in an album
type MediaEntry struct {
	FileName    string            `json:"FileName"`
	URIs        map[string]URIRef `json:"Uris"`
	ArchivedURI string            `json:"ArchivedUri"`
}

// Pages carries the pagination cursor of a listing
type Pages struct {
	Total    int    `json:"Total"`
	Start    int    `json:"Start"`
	Count    int    `json:"Count"`
	NextPage string `json:"NextPage"`
}

// envelope is the outer shape of every API payload. Fields are kept raw
// so that absence can be told apart from an empty list.
type envelope struct {
	Response map[string]json.RawMessage `json:"Response"`
}

func decodeEnvelope(payload json.RawMessage) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return env, fmt.Errorf("decode response envelope: %w", err)
	}
	return env, nil
}

// field returns the raw value of Response.<name>; null counts as absent
func (e envelope) field(name string) (json.RawMessage, bool) {
	raw, ok := e.Response[name]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func (e envelope) nextPage() string {
	raw, ok := e.field("Pages")
	if !ok {
		return ""
	}
	var p Pages
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	return p.NextPage
}
