package journal

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/journal/internal/apperr"
)

const delimiter = "---"

const (
	tagsKey   = "tags"
	readmeKey = "readme"
)

// FrontMatter is the YAML header at the top of an entry file. Tags keep their
// original order; tag identity is case-insensitive. Keys other than tags and
// readme are carried through untouched so that rewriting a header never
// drops them.
type FrontMatter struct {
	tags      []string
	readme    string
	entryDate Date
	extra     []*yaml.Node // key/value pairs, in file order
	// layout is the key order read from the file; "" marks the next extra
	// pair. Empty for headers built in code.
	layout []string
}

// NewFrontMatter builds a header. Tags are trimmed; a blank tag fails with
// apperr.ErrInvalidTag. Repeated tags (ignoring case) keep the first spelling.
func NewFrontMatter(tags []string, readme string, entryDate Date) (FrontMatter, error) {
	normalized, err := normalizeTags(tags)
	if err != nil {
		return FrontMatter{}, err
	}
	return FrontMatter{
		tags:      normalized,
		readme:    strings.TrimSpace(readme),
		entryDate: entryDate,
	}, nil
}

func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	for i, raw := range tags {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			return nil, fmt.Errorf("%w: tag %d is blank", apperr.ErrInvalidTag, i)
		}
		if containsFold(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out, nil
}

func containsFold(tags []string, tag string) bool {
	return slices.ContainsFunc(tags, func(t string) bool { return strings.EqualFold(t, tag) })
}

// Tags returns a copy of the tag list in file order.
func (f FrontMatter) Tags() []string { return slices.Clone(f.tags) }

// Readme returns the optional readme note.
func (f FrontMatter) Readme() string { return f.readme }

// EntryDate returns the date the header belongs to.
func (f FrontMatter) EntryDate() Date { return f.entryDate }

// HasTags reports whether the tag list is non-empty.
func (f FrontMatter) HasTags() bool { return len(f.tags) > 0 }

// HasTag reports whether tag is present, ignoring case.
func (f FrontMatter) HasTag(tag string) bool {
	return containsFold(f.tags, strings.TrimSpace(tag))
}

// HasAnyTag reports whether at least one of tags is present, ignoring case.
func (f FrontMatter) HasAnyTag(tags []string) bool {
	for _, t := range tags {
		if f.HasTag(t) {
			return true
		}
	}
	return false
}

// WithEntryDate returns a copy of f dated d.
func (f FrontMatter) WithEntryDate(d Date) FrontMatter {
	f.entryDate = d
	return f
}

// Equal reports whether f and o describe the same header, ignoring tag order,
// tag case and surrounding whitespace.
func (f FrontMatter) Equal(o FrontMatter) bool {
	if f.entryDate != o.entryDate || f.readme != o.readme || len(f.tags) != len(o.tags) {
		return false
	}
	for _, t := range f.tags {
		if !containsFold(o.tags, t) {
			return false
		}
	}
	return true
}

// renameTagAt replaces the tag at index i and returns the new header.
func (f FrontMatter) renameTagAt(i int, newTag string) FrontMatter {
	tags := slices.Clone(f.tags)
	tags[i] = newTag
	f.tags = tags
	return f
}

// Serialize renders the header. With asEmbeddedHeader the YAML is wrapped in
// "---" delimiter lines ready to prefix a body; otherwise a plain display
// rendering is returned.
func (f FrontMatter) Serialize(asEmbeddedHeader bool) (string, error) {
	if !asEmbeddedHeader {
		return f.plain(), nil
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	encodeKey := func(key string) error {
		var (
			val yaml.Node
			err error
		)
		switch {
		case key == tagsKey && len(f.tags) > 0:
			err = val.Encode(f.tags)
		case key == readmeKey && f.readme != "":
			err = val.Encode(f.readme)
		default:
			return nil
		}
		if err != nil {
			return fmt.Errorf("journal: encode %s: %w", key, err)
		}
		root.Content = append(root.Content, keyNode(key), &val)
		return nil
	}

	// Known keys absent from the file layout go first, then the file order.
	for _, key := range []string{tagsKey, readmeKey} {
		if !slices.Contains(f.layout, key) {
			if err := encodeKey(key); err != nil {
				return "", err
			}
		}
	}
	next := 0
	for _, key := range f.layout {
		if key != "" {
			if err := encodeKey(key); err != nil {
				return "", err
			}
			continue
		}
		if next+1 < len(f.extra) {
			root.Content = append(root.Content, f.extra[next], f.extra[next+1])
			next += 2
		}
	}
	root.Content = append(root.Content, f.extra[next:]...)

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	if len(root.Content) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(root); err != nil {
			return "", fmt.Errorf("journal: encode front matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("journal: encode front matter: %w", err)
		}
	}
	buf.WriteString(delimiter + "\n")
	return buf.String(), nil
}

// String returns the plain rendering.
func (f FrontMatter) String() string { return f.plain() }

func (f FrontMatter) plain() string {
	var sb strings.Builder
	if !f.entryDate.IsZero() {
		fmt.Fprintf(&sb, "Date: %s\n", f.entryDate.Display())
	}
	if len(f.tags) > 0 {
		fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(f.tags, ", "))
	}
	if f.readme != "" {
		fmt.Fprintf(&sb, "Readme: %s\n", f.readme)
	}
	return sb.String()
}

func keyNode(name string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
}

// ParseFrontMatter parses a delimited header block. raw may carry trailing
// content after the closing delimiter; it is ignored. The header itself does
// not store the date, so the caller supplies it (normally derived from the
// file name).
func ParseFrontMatter(raw string, entryDate Date) (FrontMatter, error) {
	header, _, err := splitFrontMatter(raw)
	if err != nil {
		return FrontMatter{}, err
	}
	return decodeHeader(header, entryDate)
}

func decodeHeader(header string, entryDate Date) (FrontMatter, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(header), &doc); err != nil {
		return FrontMatter{}, fmt.Errorf("%w: %v", apperr.ErrFrontMatterFormat, err)
	}
	if doc.Kind == 0 {
		return FrontMatter{entryDate: entryDate}, nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return FrontMatter{}, fmt.Errorf("%w: unexpected document", apperr.ErrFrontMatterFormat)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return FrontMatter{}, fmt.Errorf("%w: header must be a mapping", apperr.ErrFrontMatterFormat)
	}

	var (
		tags   []string
		readme string
		extra  []*yaml.Node
		layout []string
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch key.Value {
		case tagsKey:
			if isNull(val) {
				continue
			}
			if val.Kind != yaml.SequenceNode {
				return FrontMatter{}, fmt.Errorf("%w: tags must be a list", apperr.ErrFrontMatterFormat)
			}
			if err := val.Decode(&tags); err != nil {
				return FrontMatter{}, fmt.Errorf("%w: tags: %v", apperr.ErrFrontMatterFormat, err)
			}
			layout = append(layout, tagsKey)
		case readmeKey:
			if isNull(val) {
				continue
			}
			if val.Kind != yaml.ScalarNode {
				return FrontMatter{}, fmt.Errorf("%w: readme must be text", apperr.ErrFrontMatterFormat)
			}
			readme = val.Value
			layout = append(layout, readmeKey)
		default:
			extra = append(extra, key, val)
			layout = append(layout, "")
		}
	}

	fm, err := NewFrontMatter(tags, readme, entryDate)
	if err != nil {
		return FrontMatter{}, fmt.Errorf("%w: %w", apperr.ErrFrontMatterFormat, err)
	}
	fm.extra = extra
	fm.layout = layout
	return fm, nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// splitFrontMatter separates the YAML between the leading "---" lines from
// the body. The body is returned byte for byte, starting right after the
// closing delimiter line.
func splitFrontMatter(content string) (string, string, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	line, n := firstLine(content)
	if !isDelimiter(line) {
		return "", "", fmt.Errorf("%w: missing opening delimiter", apperr.ErrFrontMatterFormat)
	}
	start := n
	for pos := start; pos < len(content); {
		line, n = firstLine(content[pos:])
		if isDelimiter(line) {
			return content[start:pos], content[pos+n:], nil
		}
		pos += n
	}
	return "", "", fmt.Errorf("%w: unterminated header", apperr.ErrFrontMatterFormat)
}

// firstLine returns the first line of s without its terminator and the
// number of bytes it occupies including the terminator.
func firstLine(s string) (string, int) {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i], i + 1
	}
	return s, len(s)
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t\r") == delimiter
}
