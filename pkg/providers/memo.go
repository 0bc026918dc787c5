package providers

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Factory creates a capability for a run.
type Factory func(exec *domain.Execution) (any, error)

// MemoProvider exposes a capability created at most once per run and shared by
// every step of that run. The instance lives in the run's state bag, so nothing
// is kept on the provider between runs.
type MemoProvider struct {
	name    string
	factory Factory
}

// Memo creates a provider registering the result of factory under name.
func Memo(name string, factory Factory) *MemoProvider {
	return &MemoProvider{name: name, factory: factory}
}

func (m *MemoProvider) key() string {
	return "memo:" + m.name
}

// Provide implements ports.Provider.
func (m *MemoProvider) Provide(ctx *domain.Context, _ domain.FunctionDetails, _ domain.Payload) error {
	v, err := ctx.Execution.State().LoadOrCreate(m.key(), func() (any, error) {
		return m.factory(ctx.Execution)
	})
	if err != nil {
		return fmt.Errorf("create %q: %w", m.name, err)
	}
	return ctx.Set(m.name, v)
}
