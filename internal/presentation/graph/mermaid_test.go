package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/operators"
	"github.com/stretchr/testify/assert"
)

func noop(*domain.Context) (domain.Result, error) { return domain.Continue(), nil }

func TestGenerateMermaid(t *testing.T) {
	child := dsl.New("child").Step("x", noop).MustBuild()
	tree := dsl.New("checkout").
		Step("validate", noop).
		Branch("success", dsl.Fn("charge", noop), dsl.RunTree(child)).
		Branch("error").
		Then(operators.MustWhen(`status == "done"`)).
		MustBuild()

	got := graph.GenerateMermaid(tree, nil)

	for _, want := range []string{
		"graph TD\n",
		`start(("start"))`,
		`f0{"validate"}`,
		`f1["charge"]`,
		`f2[["run:child"]]`,
		`f3["when(status == 'done')"]`,
		`start --> f0`,
		`f0 -- "success" --> f1`,
		`f1 --> f2`,
		// Empty branch goes straight to the continuation.
		`f0 -- "error" --> f3`,
		`f2 --> f3`,
		`f3 --> done`,
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	tree := dsl.New("t").Step("a", noop).Step("b", noop).Step("c", noop).MustBuild()

	events := []domain.Event{
		{Type: domain.EventExecutionStart},
		{Type: domain.EventFunctionStart, FunctionIndex: domain.IndexOf(0)},
		{Type: domain.EventFunctionEnd, FunctionIndex: domain.IndexOf(0)},
		{Type: domain.EventFunctionStart, FunctionIndex: domain.IndexOf(1)},
		{Type: domain.EventFunctionError, FunctionIndex: domain.IndexOf(1)},
	}
	overlay := graph.OverlayFromEvents(events)
	assert.Equal(t, []int{0, 1}, overlay.Visited)
	assert.Nil(t, overlay.Current)
	assert.Equal(t, 1, *overlay.Failed)

	got := graph.GenerateMermaid(tree, overlay)
	assert.Contains(t, got, "class f0 visited;")
	assert.Contains(t, got, "class f1 failed;")
	assert.False(t, strings.Contains(got, "class f2"))
}

func TestOverlayFromEvents_Current(t *testing.T) {
	overlay := graph.OverlayFromEvents([]domain.Event{
		{Type: domain.EventFunctionStart, FunctionIndex: domain.IndexOf(3)},
	})
	if assert.NotNil(t, overlay.Current) {
		assert.Equal(t, 3, *overlay.Current)
	}
}
