package catalog

import (
	"promaster/internal"
	"promaster/internal/util"
)

// Index looks catalog entries up by normalized code. When two entries
// normalize to the same key the first one is kept.
type Index struct {
	normalizer util.CodeNormalizer
	byKey      map[string]internal.CatalogEntry
	entries    []internal.CatalogEntry
	duplicates []string
}

func BuildIndex(entries []internal.CatalogEntry, normalizer util.CodeNormalizer) *Index {
	idx := &Index{
		normalizer: normalizer,
		byKey:      make(map[string]internal.CatalogEntry, len(entries)),
	}

	for _, e := range entries {
		key := normalizer.Key(e.Code)
		if key == "" {
			continue
		}
		if _, ok := idx.byKey[key]; ok {
			idx.duplicates = append(idx.duplicates, key)
			continue
		}
		idx.byKey[key] = e
		idx.entries = append(idx.entries, e)
	}

	return idx
}

func (i *Index) Key(code string) string {
	return i.normalizer.Key(code)
}

func (i *Index) Lookup(code string) (internal.CatalogEntry, bool) {
	key := i.normalizer.Key(code)
	if key == "" {
		return internal.CatalogEntry{}, false
	}
	e, ok := i.byKey[key]
	return e, ok
}

func (i *Index) Len() int { return len(i.entries) }

// Duplicates lists keys that appeared more than once in the source rows.
func (i *Index) Duplicates() []string { return i.duplicates }
