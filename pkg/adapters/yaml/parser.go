package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/operators"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/schema"
	"github.com/mitchellh/mapstructure"
	goyaml "gopkg.in/yaml.v3"
)

// Document is the YAML form of a tree.
type Document struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Tree        []any  `yaml:"tree"`
}

// UnmarshalYAML decodes a document, keeping the declared order of every paths
// mapping so branch functions are indexed in the order they are written.
func (d *Document) UnmarshalYAML(value *goyaml.Node) error {
	var raw struct {
		Name        string      `yaml:"name"`
		Description string      `yaml:"description"`
		Tree        goyaml.Node `yaml:"tree"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	d.Name, d.Description, d.Tree = raw.Name, raw.Description, nil
	if raw.Tree.Kind == 0 {
		return nil
	}
	tree, err := fromNode(&raw.Tree)
	if err != nil || tree == nil {
		return err
	}
	items, ok := tree.([]any)
	if !ok {
		return fmt.Errorf("line %d: tree must be a list", raw.Tree.Line)
	}
	d.Tree = items
	return nil
}

// branch is one entry of a paths mapping, in declaration order.
type branch struct {
	name  string
	items any
}

type branchList []branch

// fromNode converts a YAML node to plain values. Mappings under a "paths" key
// become a branchList.
func fromNode(n *goyaml.Node) (any, error) {
	switch n.Kind {
	case goyaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0])
	case goyaml.AliasNode:
		return fromNode(n.Alias)
	case goyaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, child := range n.Content {
			v, err := fromNode(child)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case goyaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i].Value, n.Content[i+1]
			var (
				v   any
				err error
			)
			if key == "paths" && val.Kind == goyaml.MappingNode {
				v, err = branchesFromNode(val)
			} else {
				v, err = fromNode(val)
			}
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func branchesFromNode(n *goyaml.Node) (branchList, error) {
	out := make(branchList, 0, len(n.Content)/2)
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		if seen[name] {
			return nil, fmt.Errorf("line %d: duplicate path %q", n.Content[i].Line, name)
		}
		seen[name] = true
		items, err := fromNode(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		out = append(out, branch{name: name, items: items})
	}
	return out, nil
}

// plain turns branch lists back into mappings, for values that are data rather
// than tree nodes.
func plain(v any) any {
	switch x := v.(type) {
	case branchList:
		out := make(map[string]any, len(x))
		for _, b := range x {
			out[b.name] = plain(b.items)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = plain(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = plain(item)
		}
		return out
	}
	return v
}

// nodeSpec is the decoded form of a mapping node. Exactly one field other than
// Name is set.
type nodeSpec struct {
	Name     string            `mapstructure:"name"`
	Paths    map[string][]any  `mapstructure:"paths"`
	Sequence []any             `mapstructure:"sequence"`
	When     string            `mapstructure:"when"`
	Equals   string            `mapstructure:"equals"`
	Set      *setSpec          `mapstructure:"set"`
	Wait     time.Duration     `mapstructure:"wait"`
	Run      string            `mapstructure:"run"`
	Require  map[string]string `mapstructure:"require"`
}

type setSpec struct {
	Key   string `mapstructure:"key"`
	Value any    `mapstructure:"value"`
}

var nodeKinds = []string{"paths", "sequence", "when", "equals", "set", "wait", "run", "require"}

// Resolver returns the tree a {run: name} node refers to. It is called when the
// node executes.
type Resolver func(name string) (*domain.Tree, error)

// Decode reads every document of a YAML stream. Documents are separated by "---".
func Decode(r io.Reader) ([]Document, error) {
	dec := goyaml.NewDecoder(r)
	var docs []Document
	for {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, domain.ConfigError("decode yaml: %w", err)
		}
		docs = append(docs, doc)
	}
}

// Parse decodes a single YAML document and compiles it. Run nodes are resolved
// with resolve, which may be nil when the document has none.
func Parse(data []byte, reg *registry.Registry, resolve Resolver) (*domain.Tree, error) {
	docs, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(docs) != 1 {
		return nil, domain.ConfigError("expected one yaml document, found %d", len(docs))
	}
	tree, _, err := Compile(docs[0], reg, resolve)
	return tree, err
}

// Compile turns a document into a tree. It also returns the names of the trees
// referenced by run nodes.
func Compile(doc Document, reg *registry.Registry, resolve Resolver) (*domain.Tree, []string, error) {
	if doc.Name == "" {
		return nil, nil, domain.ConfigError("tree document has no name")
	}
	if reg == nil {
		reg = registry.NewRegistry()
	}
	c := &compiler{registry: reg, resolve: resolve, refs: make(map[string]struct{})}

	seq, err := c.sequence(doc.Tree, doc.Name)
	if err != nil {
		return nil, nil, err
	}
	tree, err := domain.Compile(doc.Name, seq)
	if err != nil {
		return nil, nil, err
	}

	refs := make([]string, 0, len(c.refs))
	for name := range c.refs {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return tree, refs, nil
}

type compiler struct {
	registry *registry.Registry
	resolve  Resolver
	refs     map[string]struct{}
}

func (c *compiler) sequence(items []any, at string) (domain.Sequence, error) {
	seq := make(domain.Sequence, 0, len(items))
	for i, item := range items {
		n, err := c.node(item, fmt.Sprintf("%s[%d]", at, i))
		if err != nil {
			return nil, err
		}
		seq = append(seq, n)
	}
	return seq, nil
}

func (c *compiler) node(raw any, at string) (domain.Node, error) {
	switch v := raw.(type) {
	case string:
		fn, err := c.registry.Lookup(v)
		if err != nil {
			return nil, domain.ConfigError("%s: %w", at, err)
		}
		return fn, nil
	case []any:
		return c.sequence(v, at)
	case map[string]any:
		return c.mapping(v, at)
	case map[any]any:
		return c.mapping(stringKeys(v), at)
	case nil:
		return nil, domain.ConfigError("%s: empty node", at)
	default:
		return nil, domain.ConfigError("%s: unsupported node of type %T", at, raw)
	}
}

func (c *compiler) mapping(raw map[string]any, at string) (domain.Node, error) {
	for k, v := range raw {
		if m, ok := v.(map[any]any); ok {
			raw[k] = stringKeys(m)
		}
	}

	var kinds []string
	for _, k := range nodeKinds {
		if _, ok := raw[k]; ok {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) != 1 {
		return nil, domain.ConfigError("%s: node must declare exactly one of %s", at, strings.Join(nodeKinds, ", "))
	}

	branches, ordered := raw["paths"].(branchList)
	if ordered {
		decoded := make(map[string]any, len(raw))
		for k, v := range raw {
			decoded[k] = v
		}
		decoded["paths"] = map[string]any{}
		raw = decoded
	}

	var spec nodeSpec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &spec,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, domain.ConfigError("%s: %w", at, err)
	}

	var fn *domain.Func
	switch kinds[0] {
	case "paths":
		if ordered {
			return c.branches(branches, at)
		}
		paths := make(domain.Paths, len(spec.Paths))
		for name, items := range spec.Paths {
			seq, err := c.sequence(items, at+".paths."+name)
			if err != nil {
				return nil, err
			}
			paths[name] = seq
		}
		return paths, nil
	case "sequence":
		return c.sequence(spec.Sequence, at+".sequence")
	case "when":
		if fn, err = operators.When(spec.When); err != nil {
			return nil, domain.ConfigError("%s: %w", at, err)
		}
	case "equals":
		if spec.Equals == "" {
			return nil, domain.ConfigError("%s: equals needs a payload key", at)
		}
		fn = operators.Equals(spec.Equals)
	case "set":
		if spec.Set == nil || spec.Set.Key == "" {
			return nil, domain.ConfigError("%s: set needs a key", at)
		}
		fn = operators.Set(spec.Set.Key, plain(spec.Set.Value))
	case "wait":
		if spec.Wait < 0 {
			return nil, domain.ConfigError("%s: negative wait", at)
		}
		fn = operators.Wait(spec.Wait)
	case "run":
		if spec.Run == "" {
			return nil, domain.ConfigError("%s: run needs a tree name", at)
		}
		c.refs[spec.Run] = struct{}{}
		fn = c.subtree(spec.Run)
	case "require":
		s, err := schema.ParseTypeMap(spec.Require)
		if err != nil {
			return nil, domain.ConfigError("%s: require: %w", at, err)
		}
		fn = operators.Require(s)
	}

	if spec.Name != "" {
		fn = &domain.Func{Name: spec.Name, Fn: fn.Fn}
	}
	return fn, nil
}

func (c *compiler) branches(list branchList, at string) (domain.Node, error) {
	b := domain.Branches{
		Order: make([]string, 0, len(list)),
		Paths: make(domain.Paths, len(list)),
	}
	for _, br := range list {
		where := at + ".paths." + br.name
		items, ok := br.items.([]any)
		if !ok && br.items != nil {
			return nil, domain.ConfigError("%s: branch must be a list", where)
		}
		seq, err := c.sequence(items, where)
		if err != nil {
			return nil, err
		}
		b.Order = append(b.Order, br.name)
		b.Paths[br.name] = seq
	}
	return b, nil
}

// subtree runs the named tree as a nested execution and merges its payload.
func (c *compiler) subtree(name string) *domain.Func {
	resolve := c.resolve
	return &domain.Func{
		Name: "run:" + name,
		Fn: func(ctx *domain.Context) (domain.Result, error) {
			if resolve == nil {
				return domain.Result{}, fmt.Errorf("%w: %s", domain.ErrTreeNotFound, name)
			}
			tree, err := resolve(name)
			if err != nil {
				return domain.Result{}, err
			}
			out, err := ctx.Run(tree, ctx.Props)
			if err != nil {
				return domain.Result{}, fmt.Errorf("nested tree %q: %w", name, err)
			}
			return domain.Merge(out), nil
		},
	}
}

// stringKeys converts a mapping with non-string keys, such as unquoted true and
// false branch names.
func stringKeys(m map[any]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if inner, ok := v.(map[any]any); ok {
			v = stringKeys(inner)
		}
		out[fmt.Sprint(k)] = v
	}
	return out
}
