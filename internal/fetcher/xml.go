package fetcher

import (
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
)

// FindXML decodes the first element with the given local name into a T.
// It returns (nil, nil) when the document has no such element. The document's
// declared charset is honored.
func FindXML[T any](r io.Reader, elementName string) (*T, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "xml: read token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != elementName {
			continue
		}

		var item T
		if err := decoder.DecodeElement(&item, &se); err != nil {
			return nil, eris.Wrap(err, "xml: decode element")
		}
		return &item, nil
	}
}
