package domain

import (
	"fmt"
	"sort"
)

// AnonymousName is the name given to steps declared without one.
const AnonymousName = "anonymous"

// StepFunc is a single callable step of a tree.
type StepFunc func(ctx *Context) (Result, error)

// Node is an element of the declarative tree grammar: a StepFunc, a *Func, a Sequence, a Paths map or
// Branches.
type Node interface {
	isNode()
}

// Func is a named function reference.
type Func struct {
	Name string
	Fn   StepFunc
}

// Sequence is an ordered list of nodes. Nested sequences are spliced in place.
type Sequence []Node

// Paths maps branch names to the sub-tree executed when a preceding step selects that name.
type Paths map[string]Sequence

// Branches is a branch map that keeps the order its paths were declared in.
// Function indices inside it follow Order instead of sorted names.
type Branches struct {
	Order []string
	Paths Paths
}

func (StepFunc) isNode() {}
func (*Func) isNode()    {}
func (Sequence) isNode() {}
func (Paths) isNode()    {}
func (Branches) isNode() {}

// FunctionDetails identifies a function reference inside a compiled tree.
type FunctionDetails struct {
	Index int    `json:"functionIndex"`
	Name  string `json:"name"`
	// Paths lists the branch names a step at this position may select, sorted.
	Paths []string `json:"paths,omitempty"`
}

// Step is a compiled function reference.
type Step struct {
	Details FunctionDetails
	Fn      StepFunc
}

// Element is either a Step or a branch map of compiled blocks.
type Element struct {
	Step  *Step
	Paths map[string]*Block
}

// Block is a compiled sequence.
type Block struct {
	Elements []Element
}

// StaticNode is the JSON-serialisable description of a compiled tree.
type StaticNode struct {
	Type          string                 `json:"type"`
	FunctionIndex *int                   `json:"functionIndex,omitempty"`
	Name          string                 `json:"name,omitempty"`
	Items         []*StaticNode          `json:"items,omitempty"`
	Paths         map[string]*StaticNode `json:"paths,omitempty"`
}

// Static node types.
const (
	StaticFunction = "function"
	StaticSequence = "sequence"
	StaticPaths    = "paths"
)

// Tree is a compiled, immutable tree. It is safe to run concurrently.
type Tree struct {
	name      string
	root      *Block
	static    *StaticNode
	functions []FunctionDetails
}

// Name returns the tree's name.
func (t *Tree) Name() string { return t.name }

// Root returns the compiled root block.
func (t *Tree) Root() *Block { return t.root }

// Static returns the cached static description of the tree.
func (t *Tree) Static() *StaticNode { return t.static }

// Functions returns the details of every function in index order.
func (t *Tree) Functions() []FunctionDetails {
	out := make([]FunctionDetails, len(t.functions))
	copy(out, t.functions)
	return out
}

// Function returns the details of the function at index.
func (t *Tree) Function(index int) (FunctionDetails, bool) {
	if index < 0 || index >= len(t.functions) {
		return FunctionDetails{}, false
	}
	return t.functions[index], true
}

// Compile validates seq and assigns function indices depth-first, pre-order.
// Branches of a Paths map are visited in sorted name order so indices are
// deterministic; Branches are visited in their declared order.
func Compile(name string, seq Sequence) (*Tree, error) {
	c := &compiler{}
	root, static, err := c.block(seq)
	if err != nil {
		return nil, err
	}
	return &Tree{
		name:      name,
		root:      root,
		static:    static,
		functions: c.functions,
	}, nil
}

// MustCompile is like Compile but panics on error. Intended for package-level trees and tests.
func MustCompile(name string, seq Sequence) *Tree {
	t, err := Compile(name, seq)
	if err != nil {
		panic(err)
	}
	return t
}

type compiler struct {
	functions []FunctionDetails
}

func flatten(seq Sequence, out []Node) []Node {
	for _, n := range seq {
		if nested, ok := n.(Sequence); ok {
			out = flatten(nested, out)
			continue
		}
		out = append(out, n)
	}
	return out
}

func (c *compiler) block(seq Sequence) (*Block, *StaticNode, error) {
	nodes := flatten(seq, nil)
	block := &Block{Elements: make([]Element, 0, len(nodes))}
	static := &StaticNode{Type: StaticSequence, Items: make([]*StaticNode, 0, len(nodes))}

	for i, n := range nodes {
		switch v := n.(type) {
		case nil:
			return nil, nil, ConfigError("nil node at position %d", i)
		case StepFunc:
			if v == nil {
				return nil, nil, ConfigError("nil function at position %d", i)
			}
			el, sn := c.step(AnonymousName, v, nodes, i)
			block.Elements = append(block.Elements, el)
			static.Items = append(static.Items, sn)
		case *Func:
			if v == nil || v.Fn == nil {
				return nil, nil, ConfigError("function at position %d has no implementation", i)
			}
			name := v.Name
			if name == "" {
				name = AnonymousName
			}
			el, sn := c.step(name, v.Fn, nodes, i)
			block.Elements = append(block.Elements, el)
			static.Items = append(static.Items, sn)
		case Paths:
			el, sn, err := c.branches(v, sortedNames(v), nodes, i)
			if err != nil {
				return nil, nil, err
			}
			block.Elements = append(block.Elements, el)
			static.Items = append(static.Items, sn)
		case Branches:
			if err := checkOrder(v); err != nil {
				return nil, nil, ConfigError("branch map at position %d: %w", i, err)
			}
			el, sn, err := c.branches(v.Paths, v.Order, nodes, i)
			if err != nil {
				return nil, nil, err
			}
			block.Elements = append(block.Elements, el)
			static.Items = append(static.Items, sn)
		default:
			return nil, nil, ConfigError("unsupported node %T at position %d", n, i)
		}
	}
	return block, static, nil
}

func (c *compiler) branches(paths Paths, order []string, nodes []Node, i int) (Element, *StaticNode, error) {
	if i == 0 || isPaths(nodes[i-1]) {
		return Element{}, nil, ConfigError("branch map at position %d must directly follow a function", i)
	}
	el := Element{Paths: make(map[string]*Block, len(paths))}
	sn := &StaticNode{Type: StaticPaths, Paths: make(map[string]*StaticNode, len(paths))}
	for _, branch := range order {
		if branch == "" {
			return Element{}, nil, ConfigError("branch map at position %d declares an empty path name", i)
		}
		sub, subStatic, err := c.block(paths[branch])
		if err != nil {
			return Element{}, nil, err
		}
		el.Paths[branch] = sub
		sn.Paths[branch] = subStatic
	}
	return el, sn, nil
}

// checkOrder verifies that b.Order names every path exactly once.
func checkOrder(b Branches) error {
	if len(b.Order) != len(b.Paths) {
		return fmt.Errorf("order lists %d paths, map declares %d", len(b.Order), len(b.Paths))
	}
	seen := make(map[string]bool, len(b.Order))
	for _, name := range b.Order {
		if _, ok := b.Paths[name]; !ok || seen[name] {
			return fmt.Errorf("order must list every path exactly once, got %q", name)
		}
		seen[name] = true
	}
	return nil
}

func (c *compiler) step(name string, fn StepFunc, nodes []Node, i int) (Element, *StaticNode) {
	details := FunctionDetails{Index: len(c.functions), Name: name}
	if i+1 < len(nodes) {
		switch next := nodes[i+1].(type) {
		case Paths:
			details.Paths = sortedNames(next)
		case Branches:
			details.Paths = sortedNames(next.Paths)
		}
	}
	c.functions = append(c.functions, details)

	index := details.Index
	return Element{Step: &Step{Details: details, Fn: fn}},
		&StaticNode{Type: StaticFunction, FunctionIndex: &index, Name: name}
}

func isPaths(n Node) bool {
	switch n.(type) {
	case Paths, Branches:
		return true
	}
	return false
}

func sortedNames(p Paths) []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// String renders the details for logs.
func (d FunctionDetails) String() string {
	return fmt.Sprintf("%d:%s", d.Index, d.Name)
}
