// Package help renders the operator documentation bundled with the console.
package help

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

//go:embed docs/*.md
var bundled embed.FS

// ErrNotFound is returned for unknown slugs.
var ErrNotFound = errors.New("help: document not found")

// Doc is one rendered help page.
type Doc struct {
	Slug    string
	Title   string
	Summary string
	Order   int
	HTML    template.HTML
}

type frontMatter struct {
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
	Order   int    `yaml:"order"`
}

// Library holds the rendered documents in display order.
type Library struct {
	docs   []Doc
	bySlug map[string]int
}

// Load renders the bundled documents.
func Load() (*Library, error) {
	return LoadFS(bundled, "docs")
}

// LoadFS renders every *.md file in dir.
func LoadFS(fsys fs.FS, dir string) (*Library, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("help: read %s: %w", dir, err)
	}
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	policy := bluemonday.UGCPolicy()

	lib := &Library{bySlug: make(map[string]int)}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".md" {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("help: read %s: %w", entry.Name(), err)
		}
		meta, body, err := splitFrontMatter(raw)
		if err != nil {
			return nil, fmt.Errorf("help: %s: %w", entry.Name(), err)
		}
		var buf bytes.Buffer
		if err := md.Convert(body, &buf); err != nil {
			return nil, fmt.Errorf("help: render %s: %w", entry.Name(), err)
		}
		slug := strings.TrimSuffix(entry.Name(), ".md")
		title := meta.Title
		if title == "" {
			title = slug
		}
		lib.docs = append(lib.docs, Doc{
			Slug:    slug,
			Title:   title,
			Summary: meta.Summary,
			Order:   meta.Order,
			HTML:    template.HTML(policy.SanitizeBytes(buf.Bytes())),
		})
	}
	sort.SliceStable(lib.docs, func(i, j int) bool {
		if lib.docs[i].Order != lib.docs[j].Order {
			return lib.docs[i].Order < lib.docs[j].Order
		}
		return lib.docs[i].Slug < lib.docs[j].Slug
	})
	for i, d := range lib.docs {
		lib.bySlug[d.Slug] = i
	}
	return lib, nil
}

func splitFrontMatter(raw []byte) (frontMatter, []byte, error) {
	var meta frontMatter
	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(raw, []byte("---\n")) {
		return meta, raw, nil
	}
	rest := raw[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		return meta, nil, errors.New("unterminated front matter")
	}
	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return meta, nil, fmt.Errorf("front matter: %w", err)
	}
	return meta, rest[end+len("\n---\n"):], nil
}

// List returns the documents in display order.
func (l *Library) List() []Doc {
	return append([]Doc(nil), l.docs...)
}

// Get returns the document for slug.
func (l *Library) Get(slug string) (Doc, error) {
	i, ok := l.bySlug[slug]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return l.docs[i], nil
}
