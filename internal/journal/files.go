package journal

import (
	"iter"

	"github.com/starford/journal/internal/apperr"
	"github.com/starford/journal/internal/storage"
)

// MarkdownFiles enumerates the entry files of a journal tree.
type MarkdownFiles struct {
	store storage.Provider
}

// NewMarkdownFiles creates an enumerator over store.
func NewMarkdownFiles(store storage.Provider) *MarkdownFiles {
	return &MarkdownFiles{store: store}
}

// FindAll lists the absolute path of every .md file under the root, in
// directory order, including files whose names are not dates. Files are
// discovered as the sequence is consumed. The sequence is single pass:
// ranging over it a second time yields apperr.ErrListingConsumed.
func (m *MarkdownFiles) FindAll() iter.Seq2[string, error] {
	consumed := false
	return func(yield func(string, error) bool) {
		if consumed {
			yield("", apperr.ErrListingConsumed)
			return
		}
		consumed = true

		err := m.store.Walk("", func(path string) error {
			if !yield(path, nil) {
				return storage.ErrStopWalk
			}
			return nil
		})
		if err != nil {
			yield("", err)
		}
	}
}
