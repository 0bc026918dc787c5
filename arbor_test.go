package arbor_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/events"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLoader map[string]*domain.Tree

func (l staticLoader) Get(name string) (*domain.Tree, error) {
	if t, ok := l[name]; ok {
		return t, nil
	}
	return nil, domain.ErrTreeNotFound
}

func (l staticLoader) List() ([]string, error) {
	var names []string
	for k := range l {
		names = append(names, k)
	}
	return names, nil
}

func TestNew_RejectsNilProvider(t *testing.T) {
	_, err := arbor.New(arbor.WithProviders(nil))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfiguration))
}

func TestEngine_RunNamed(t *testing.T) {
	tree := dsl.New("hello").Step("greet", func(*domain.Context) (domain.Result, error) {
		return domain.Merge(domain.Payload{"msg": "hi"}), nil
	}).MustBuild()

	eng, err := arbor.New(arbor.WithLoader(staticLoader{"hello": tree}))
	require.NoError(t, err)

	h, err := eng.RunNamed(context.Background(), "hello", nil)
	require.NoError(t, err)
	out, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, "hi", out["msg"])

	_, err = eng.RunNamed(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, domain.ErrTreeNotFound)

	names, err := eng.Trees()
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, names)
}

func TestEngine_WithoutLoader(t *testing.T) {
	eng, err := arbor.New()
	require.NoError(t, err)

	_, err = eng.Tree("x")
	assert.ErrorIs(t, err, domain.ErrTreeNotFound)
}

func TestEngine_SharedBus(t *testing.T) {
	bus := events.NewBus()
	var mu sync.Mutex
	seen := map[string]bool{}
	bus.On(domain.EventExecutionEnd, func(_ context.Context, e domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen[e.ExecutionID] = true
	})

	a, _ := arbor.New(arbor.WithBus(bus))
	b, _ := arbor.New(arbor.WithBus(bus))
	tree := dsl.New("t").Step("a", func(*domain.Context) (domain.Result, error) { return domain.Continue(), nil }).MustBuild()

	h1 := a.Run(context.Background(), tree, nil)
	h2 := b.Run(context.Background(), tree, nil)
	_, _ = h1.Wait()
	_, _ = h2.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen[h1.Execution().ID])
	assert.True(t, seen[h2.Execution().ID])
	assert.Same(t, bus, a.Events())
}

func TestEngine_ErrorLocality(t *testing.T) {
	// Steps after the failing one never run and the error names the failing step.
	ran := false
	tree := dsl.New("fail").
		Step("ok", func(*domain.Context) (domain.Result, error) { return domain.Continue(), nil }).
		Step("bad", func(*domain.Context) (domain.Result, error) { return domain.Result{}, errors.New("nope") }).
		Step("after", func(*domain.Context) (domain.Result, error) { ran = true; return domain.Continue(), nil }).
		MustBuild()

	eng, _ := arbor.New()
	_, err := eng.RunSync(context.Background(), tree, nil)

	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.FunctionIndex)
	assert.Equal(t, "bad", execErr.FunctionName)
	assert.False(t, ran)
}

func TestEngine_UseAfterConstruction(t *testing.T) {
	eng, _ := arbor.New()
	eng.Use(ports.ProviderFunc(func(ctx *domain.Context, _ domain.FunctionDetails, _ domain.Payload) error {
		return ctx.Set("late", true)
	}))

	tree := dsl.New("late").Step("a", func(ctx *domain.Context) (domain.Result, error) {
		v, _ := ctx.Get("late")
		return domain.Merge(domain.Payload{"late": v}), nil
	}).MustBuild()

	out, err := eng.RunSync(context.Background(), tree, nil)
	require.NoError(t, err)
	assert.Equal(t, true, out["late"])
}
