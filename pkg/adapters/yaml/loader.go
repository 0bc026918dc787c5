package yaml

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/registry"
)

// Loader implements ports.TreeLoader over a directory of YAML documents.
// Every *.yaml and *.yml file is loaded eagerly; a file may hold several
// documents separated by "---".
type Loader struct {
	trees map[string]*domain.Tree
	docs  map[string]Document
	files map[string]string
}

// Open loads the YAML documents under dir.
func Open(dir string, reg *registry.Registry) (*Loader, error) {
	return NewLoader(os.DirFS(dir), reg)
}

// NewLoader loads the YAML documents of fsys. A document without a name takes the
// base name of its file when the file holds a single document.
func NewLoader(fsys fs.FS, reg *registry.Registry) (*Loader, error) {
	l := &Loader{
		trees: make(map[string]*domain.Tree),
		docs:  make(map[string]Document),
		files: make(map[string]string),
	}
	refs := make(map[string][]string)

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := path.Ext(p)
		if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}

		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		docs, err := Decode(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}

		for _, doc := range docs {
			if doc.Name == "" && len(docs) == 1 {
				doc.Name = strings.TrimSuffix(path.Base(p), ext)
			}
			if prev, ok := l.files[doc.Name]; ok {
				return domain.ConfigError("%s: tree %q already declared in %s", p, doc.Name, prev)
			}
			tree, treeRefs, err := Compile(doc, reg, l.Get)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			l.trees[doc.Name] = tree
			l.docs[doc.Name] = doc
			l.files[doc.Name] = p
			refs[doc.Name] = treeRefs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for name, targets := range refs {
		for _, target := range targets {
			if _, ok := l.trees[target]; !ok {
				return nil, domain.ConfigError("%s: tree %q runs unknown tree %q", l.files[name], name, target)
			}
		}
	}
	return l, nil
}

// Get returns the compiled tree registered under name.
func (l *Loader) Get(name string) (*domain.Tree, error) {
	tree, ok := l.trees[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTreeNotFound, name)
	}
	return tree, nil
}

// List returns the names of all loaded trees, sorted.
func (l *Loader) List() ([]string, error) {
	names := make([]string, 0, len(l.trees))
	for name := range l.trees {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Document returns the source document of a loaded tree.
func (l *Loader) Document(name string) (Document, bool) {
	doc, ok := l.docs[name]
	return doc, ok
}

// File returns the path, relative to the loader root, declaring the tree.
func (l *Loader) File(name string) (string, bool) {
	p, ok := l.files[name]
	return p, ok
}
