package rag

import (
	"bytes"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// textFields lists, in priority order, the object keys that may carry a
// document's text.
var textFields = []string{"text", "content", "page_content", "body"}

// LoadDocuments reads the document store from a UTF-8 JSON file. Element i of
// the file becomes the Document with ID i.
func LoadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rag: read documents %s: %w: %w", path, ErrDocumentLoad, err)
	}
	docs, err := ParseDocuments(data)
	if err != nil {
		return nil, fmt.Errorf("rag: %s: %w", path, err)
	}
	return docs, nil
}

// ParseDocuments decodes a document store. The payload is either a JSON array
// or an object whose "documents" field is an array. Each element may be:
//
//   - a string, used as the text;
//   - an object with a string "text", "content", "page_content" or "body"
//     field; "source" and any other scalar fields are kept as metadata;
//   - a number or boolean, whose JSON literal is used as the text.
//
// null, nested arrays, and objects without a text field are rejected.
func ParseDocuments(data []byte) ([]Document, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("rag: documents are not valid JSON: %w", ErrDocumentLoad)
	}

	root := gjson.ParseBytes(data)
	if root.IsObject() {
		root = root.Get("documents")
	}
	if !root.IsArray() {
		return nil, fmt.Errorf("rag: documents must be a JSON array: %w", ErrDocumentLoad)
	}

	elems := root.Array()
	docs := make([]Document, 0, len(elems))
	for i, el := range elems {
		doc, err := parseDocument(i, el)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// parseDocument converts a single array element into a Document.
func parseDocument(i int, el gjson.Result) (Document, error) {
	doc := Document{ID: i}
	switch {
	case el.Type == gjson.String:
		doc.Text = el.Str
		return doc, nil
	case el.Type == gjson.Number, el.Type == gjson.True, el.Type == gjson.False:
		doc.Text = el.Raw
		return doc, nil
	case el.IsObject():
		return parseObjectDocument(doc, el)
	case el.Type == gjson.Null:
		return doc, fmt.Errorf("rag: document %d is null: %w", i, ErrDocumentLoad)
	default:
		return doc, fmt.Errorf("rag: document %d has unsupported shape %s: %w", i, el.Raw, ErrDocumentLoad)
	}
}

// parseObjectDocument extracts text, source, and metadata from an object entry.
func parseObjectDocument(doc Document, el gjson.Result) (Document, error) {
	textKey := ""
	for _, k := range textFields {
		if v := el.Get(k); v.Type == gjson.String {
			doc.Text = v.Str
			textKey = k
			break
		}
	}
	if textKey == "" {
		return doc, fmt.Errorf("rag: document %d has no string field among %v: %w", doc.ID, textFields, ErrDocumentLoad)
	}

	el.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		switch {
		case k == textKey:
		case k == "source" && value.Type == gjson.String:
			doc.Source = value.Str
		case k == "metadata" && value.IsObject():
			value.ForEach(func(mk, mv gjson.Result) bool {
				doc.setMeta(mk.String(), mv.String())
				return true
			})
		default:
			doc.setMeta(k, value.String())
		}
		return true
	})
	return doc, nil
}

func (d *Document) setMeta(k, v string) {
	if d.Metadata == nil {
		d.Metadata = make(map[string]string)
	}
	d.Metadata[k] = v
}
