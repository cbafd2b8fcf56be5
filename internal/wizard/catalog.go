package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/draftforge/draftforge/internal/artifact"
	"github.com/draftforge/draftforge/pkg/api"
)

// Catalog is the ordered list of chapters planned for the project, as
// recorded in the project manifest during outlining
type Catalog []api.ChapterRef

const manifestPath = "manifest.json"

var (
	ErrManifestMissing = errors.New("project manifest not found")
	ErrEmptyCatalog    = errors.New("project manifest lists no chapters")
)

// LoadCatalog reads the chapter catalog from the project manifest
// artifact. Chapters keep their manifest order
func LoadCatalog(ctx context.Context, store artifact.Store) (Catalog, error) {
	content, err := store.Read(ctx, manifestPath)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, ErrManifestMissing
		}
		return nil, err
	}

	var catalog Catalog
	for _, entry := range gjson.Get(content, "state.chapters").Array() {
		number := entry.Get("number")
		if !number.Exists() {
			continue
		}
		chapter := api.ChapterID(number.Int())
		title := entry.Get("title").String()
		if title == "" {
			title = fmt.Sprintf("Chapter %d", chapter)
		}
		catalog = append(catalog, api.ChapterRef{
			Number: chapter,
			Title:  title,
		})
	}

	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}
	return catalog, nil
}

// Next returns the chapter strictly after current in catalog order, or
// false if current is the last chapter
func (c Catalog) Next(current api.ChapterID) (api.ChapterID, bool) {
	for i, ref := range c {
		if ref.Number == current {
			if i+1 < len(c) {
				return c[i+1].Number, true
			}
			return 0, false
		}
	}
	return 0, false
}

// Contains reports whether the catalog lists the chapter
func (c Catalog) Contains(chapter api.ChapterID) bool {
	for _, ref := range c {
		if ref.Number == chapter {
			return true
		}
	}
	return false
}

// First returns the first chapter in the catalog
func (c Catalog) First() (api.ChapterID, bool) {
	if len(c) == 0 {
		return 0, false
	}
	return c[0].Number, true
}
