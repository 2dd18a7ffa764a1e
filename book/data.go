package book

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ID accepts both JSON strings and numbers, backends are not consistent.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("unexpected id value %s: %w", string(b), err)
	}
	*id = ID(n.String())
	return nil
}

// Number accepts JSON numbers and numeric strings.
type Number int

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("unexpected number value %s: %w", string(b), err)
	}
	*n = Number(v)
	return nil
}

type DataChapter struct {
	ChapterNo      int    `json:"-"`
	ChapterInfo    string `json:"chapterInfo"`
	ChapterSummary string `json:"chapterSummary,omitempty"`
}

func (c *DataChapter) UnmarshalJSON(b []byte) error {
	type plain DataChapter
	aux := struct {
		*plain
		No Number `json:"chapterNo"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	c.ChapterNo = int(aux.No)
	return nil
}

func (c DataChapter) MarshalJSON() ([]byte, error) {
	type plain DataChapter
	return json.Marshal(struct {
		plain
		No int `json:"chapterNo"`
	}{plain: plain(c), No: c.ChapterNo})
}

type AdditionalData struct {
	Dedication        string `json:"dedication,omitempty"`
	Introduction      string `json:"introduction,omitempty"`
	Preface           string `json:"preface,omitempty"`
	TableOfContents   string `json:"tableOfContents,omitempty"`
	CoverImageURL     string `json:"coverImageUrl,omitempty"`
	BackCoverImageURL string `json:"backCoverImageUrl,omitempty"`
	FullContent       string `json:"fullContent,omitempty"`
}

// Data is structured book record as returned by the authoring backend.
type Data struct {
	ID             ID             `json:"id"`
	BookTitle      string         `json:"bookTitle"`
	AuthorName     string         `json:"authorName"`
	BookChapter    []DataChapter  `json:"bookChapter,omitempty"`
	AdditionalData AdditionalData `json:"additionalData"`
	Glossary       string         `json:"glossary,omitempty"`
	Index          string         `json:"index,omitempty"`
	References     string         `json:"references,omitempty"`
}

// LoadData decodes book record. Unknown fields are ignored.
func LoadData(r io.Reader) (*Data, error) {
	var d Data
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("unable to decode book data: %w", err)
	}
	return &d, nil
}

// Blob returns monolithic content to be extracted: full content when
// backend provides it, otherwise chapters glued together with headings so
// extractor recognizes them.
func (d *Data) Blob() string {
	if full := strings.TrimSpace(d.AdditionalData.FullContent); full != "" {
		return full
	}

	var blocks []string
	for i, c := range d.BookChapter {
		text := strings.TrimSpace(c.ChapterInfo)
		if text == "" {
			text = strings.TrimSpace(c.ChapterSummary)
		}
		if text == "" {
			continue
		}
		if _, ok := ParseChapterTitle(text); !ok {
			number := c.ChapterNo
			if number < 1 {
				number = i + 1
			}
			text = fmt.Sprintf("Chapter %d\n\n%s", number, text)
		}
		blocks = append(blocks, text)
	}
	return strings.Join(blocks, "\n\n")
}

// ChapterTitles returns chapter headings known from structured record.
func (d *Data) ChapterTitles() []TOCEntry {
	res := make([]TOCEntry, 0, len(d.BookChapter))
	for i, c := range d.BookChapter {
		if ct, ok := ParseChapterTitle(c.ChapterInfo); ok {
			res = append(res, TOCEntry{Title: Chapter{Number: ct.Number, Title: ct.Title}.Heading()})
			continue
		}
		number := c.ChapterNo
		if number < 1 {
			number = i + 1
		}
		res = append(res, TOCEntry{Title: fmt.Sprintf("Chapter %d", number)})
	}
	return res
}
