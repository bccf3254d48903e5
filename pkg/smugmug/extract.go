package smugmug

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "smdl/pkg/errors"
)

// ExtractJSON returns the JSON document carried by the last <pre> element
// of an API page. Entities are decoded and nested markup inside the block
// contributes only its text.
func ExtractJSON(body []byte) (json.RawMessage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeExtraction, err, "parse HTML")
	}

	blocks := doc.Find("pre")
	if blocks.Length() == 0 {
		return nil, errs.New(errs.ErrorTypeExtraction, "no <pre> block in response")
	}

	text := strings.TrimSpace(blocks.Last().Text())
	if !json.Valid([]byte(text)) {
		return nil, errs.New(errs.ErrorTypeExtraction, "trailing <pre> block is not valid JSON")
	}
	return json.RawMessage(text), nil
}
