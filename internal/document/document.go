package document

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Category and provenance tags used by the merge step.
const (
	CategoryPicture     = "Picture"
	CategoryPictureText = "PictureText"
	SourcePictureOCR    = "picture-ocr"
)

// ChildrenKey is the key under which picture text regions are attached
// to their parent block.
const ChildrenKey = "picture-children"

// Block is one detected layout region as returned by the OCR engine.
// It is kept as a generic JSON object so engine-defined fields pass
// through to the output untouched.
type Block map[string]any

// Category returns the block's category tag, or "" if absent.
func (b Block) Category() string {
	s, _ := b["category"].(string)
	return s
}

// HasBBox reports whether the block carries a bounding box.
func (b Block) HasBBox() bool {
	_, ok := b["bbox"]
	return ok
}

// BBoxArg formats the bounding box as a comma-joined numeric string
// suitable for the engine's --bbox flag. Integral values are printed
// without a decimal point, so [0,30,200,230] becomes "0,30,200,230".
func (b Block) BBoxArg() (string, bool) {
	raw, ok := b["bbox"]
	if !ok {
		return "", false
	}
	list, ok := raw.([]any)
	if !ok {
		return "", false
	}
	parts := make([]string, len(list))
	for i, v := range list {
		switch n := v.(type) {
		case float64:
			parts[i] = strconv.FormatFloat(n, 'f', -1, 64)
		case json.Number:
			parts[i] = n.String()
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, ","), true
}

// SetChildren attaches picture text regions to the block. Callers must
// not pass an empty list; an empty result means the key stays absent.
func (b Block) SetChildren(children []PictureChild) {
	b[ChildrenKey] = children
}

// PictureChild is one text region recognized inside a picture block.
// BBox, Text and Conf mirror the second-pass result verbatim; absent
// values serialize as JSON null, matching the engine's own contract.
type PictureChild struct {
	BBox     any    `json:"bbox"`
	Text     any    `json:"text"`
	Conf     any    `json:"conf"`
	Category string `json:"category"`
	Source   string `json:"source"`
}

// ChildFrom derives a PictureChild from a raw second-pass block.
func ChildFrom(b Block) PictureChild {
	return PictureChild{
		BBox:     b["bbox"],
		Text:     b["text"],
		Conf:     b["conf"],
		Category: CategoryPictureText,
		Source:   SourcePictureOCR,
	}
}

// Store abstracts JSON persistence so malformed or missing result files
// can be simulated in tests.
type Store interface {
	LoadBlocks(path string) ([]Block, error)
	Save(v any, path string) error
}

// FileStore is the filesystem-backed Store used in production.
type FileStore struct{}

// LoadBlocks reads and parses a JSON block list.
func (FileStore) LoadBlocks(path string) ([]Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("parse result %s: %w", path, err)
	}
	return blocks, nil
}

// Save serializes v as two-space-indented JSON, overwriting path.
// HTML escaping is disabled so non-ASCII text and markup characters
// are written literally.
func (FileStore) Save(v any, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

// Stem returns the base name of path without its extension, used to
// name the merged document and locate first-pass artifacts.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
