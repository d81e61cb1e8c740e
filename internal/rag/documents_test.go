package rag

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func Test_ParseDocuments_Shapes(t *testing.T) {
	t.Parallel()
	data := []byte(`[
		"Cats require annual vaccination.",
		{"text": "Dogs need regular exercise.", "source": "dogs.pdf", "page": 4},
		{"page_content": "Rabies is a viral disease.", "metadata": {"lang": "en"}},
		42,
		true
	]`)

	docs, err := ParseDocuments(data)
	if err != nil {
		t.Fatalf("ParseDocuments: %v", err)
	}
	if len(docs) != 5 {
		t.Fatalf("want 5 documents, got %d", len(docs))
	}

	cases := []struct {
		id   int
		text string
	}{
		{0, "Cats require annual vaccination."},
		{1, "Dogs need regular exercise."},
		{2, "Rabies is a viral disease."},
		{3, "42"},
		{4, "true"},
	}
	for _, tc := range cases {
		if docs[tc.id].ID != tc.id {
			t.Errorf("doc %d: ID = %d", tc.id, docs[tc.id].ID)
		}
		if docs[tc.id].Text != tc.text {
			t.Errorf("doc %d: Text = %q, want %q", tc.id, docs[tc.id].Text, tc.text)
		}
	}
	if docs[1].Source != "dogs.pdf" {
		t.Errorf("doc 1: Source = %q, want dogs.pdf", docs[1].Source)
	}
	if docs[1].Metadata["page"] != "4" {
		t.Errorf("doc 1: page metadata = %q, want 4", docs[1].Metadata["page"])
	}
	if docs[2].Metadata["lang"] != "en" {
		t.Errorf("doc 2: lang metadata = %q, want en", docs[2].Metadata["lang"])
	}
}

func Test_ParseDocuments_Wrapper(t *testing.T) {
	t.Parallel()
	docs, err := ParseDocuments([]byte("\xef\xbb\xbf" + `{"documents": ["a", "b"]}`))
	if err != nil {
		t.Fatalf("ParseDocuments: %v", err)
	}
	if len(docs) != 2 || docs[1].Text != "b" {
		t.Errorf("got %+v, want [a b]", docs)
	}
}

func Test_ParseDocuments_Rejects(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"malformed":       `["a",`,
		"not an array":    `"just a string"`,
		"null element":    `["a", null]`,
		"nested array":    `[["a"]]`,
		"object no text":  `[{"title": "x"}]`,
		"wrapper no docs": `{"items": []}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseDocuments([]byte(in)); !errors.Is(err, ErrDocumentLoad) {
				t.Errorf("err = %v, want ErrDocumentLoad", err)
			}
		})
	}
}

func Test_LoadDocuments(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.json")
	if err := os.WriteFile(path, []byte(`["گربه‌ها نیاز به واکسن سالانه دارند."]`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	docs, err := LoadDocuments(path)
	if err != nil {
		t.Fatalf("LoadDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].Text != "گربه‌ها نیاز به واکسن سالانه دارند." {
		t.Errorf("got %+v", docs)
	}

	if _, err := LoadDocuments(filepath.Join(dir, "missing.json")); !errors.Is(err, ErrDocumentLoad) {
		t.Errorf("missing file: err = %v, want ErrDocumentLoad", err)
	}
}
