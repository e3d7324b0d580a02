package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stubContext struct {
	data map[string]any
}

func newStubContext() *stubContext { return &stubContext{data: map[string]any{}} }

func (c *stubContext) Get(key string) (any, bool) { v, ok := c.data[key]; return v, ok }
func (c *stubContext) Set(key string, value any)   { c.data[key] = value }

func TestPluginLifecycle(t *testing.T) {
	p, err := FromFunc("double", func(ctx Context, args ...any) (any, error) {
		return args[0].(int) * 2, nil
	})
	require.NoError(t, err)
	require.Equal(t, StatusUnprepared, p.Status())

	_, err = p.Execute(newStubContext(), 3)
	require.Error(t, err, "execute before prepare must fail")

	require.NoError(t, p.Prepare(nil))
	require.Equal(t, StatusPrepared, p.Status())

	err = p.Prepare(nil)
	require.Error(t, err, "double prepare must fail")

	result, err := p.Execute(newStubContext(), 3)
	require.NoError(t, err)
	require.Equal(t, 6, result)

	require.NoError(t, p.Cleanup(nil))
	require.Equal(t, StatusDead, p.Status())
	require.NoError(t, p.Cleanup(nil), "cleanup is idempotent once dead")
}

func TestFromBundleRequiresExecuteAndName(t *testing.T) {
	_, err := FromBundle(Bundle{Name: "x"})
	require.Error(t, err)

	_, err = FromBundle(Bundle{Execute: func(Context, ...any) (any, error) { return nil, nil }})
	require.Error(t, err)
}

type countingPlugin struct {
	prepared int
	cleaned  int
}

func (c *countingPlugin) Execute(ctx Context, args ...any) (any, error) { return len(args), nil }
func (c *countingPlugin) Prepare(config any) (any, error)                { c.prepared++; return nil, nil }
func (c *countingPlugin) Cleanup(config any) (any, error)                { c.cleaned++; return nil, nil }

func TestFromClassBindsInstanceMethods(t *testing.T) {
	inst := &countingPlugin{}
	p, err := FromClass("counter", inst)
	require.NoError(t, err)

	require.NoError(t, p.Prepare(nil))
	require.Equal(t, 1, inst.prepared)

	result, err := p.Execute(newStubContext(), 1, 2, 3)
	require.NoError(t, err)
	require.Equal(t, 3, result)

	require.NoError(t, p.Cleanup(nil))
	require.Equal(t, 1, inst.cleaned)
}

func TestManagerRegisterGetRemove(t *testing.T) {
	m := NewManager()
	p, err := FromFunc("noop", func(Context, ...any) (any, error) { return nil, nil })
	require.NoError(t, err)

	require.NoError(t, m.Register(p))
	require.Error(t, m.Register(p), "duplicate register must fail with already-registered")

	got, err := m.Get("noop")
	require.NoError(t, err)
	require.Same(t, p, got)

	require.NoError(t, m.Remove("noop"))
	_, err = m.Get("noop")
	require.Error(t, err, "get after remove must fail with not-found")
}

func TestChainLooksUpByPriority(t *testing.T) {
	primary := NewManager()
	fallback := NewManager()

	fb, _ := FromFunc("shared", func(Context, ...any) (any, error) { return "fallback", nil })
	require.NoError(t, fallback.Register(fb))

	pr, _ := FromFunc("shared", func(Context, ...any) (any, error) { return "primary", nil })
	require.NoError(t, primary.Register(pr))

	chain := NewChain(primary, fallback)
	got, err := chain.Get("shared")
	require.NoError(t, err)
	require.Same(t, pr, got)

	only, _ := FromFunc("fallback-only", func(Context, ...any) (any, error) { return nil, nil })
	require.NoError(t, fallback.Register(only))
	got2, err := chain.Get("fallback-only")
	require.NoError(t, err)
	require.Equal(t, "fallback-only", got2.Name())
}

func TestChainPrepareAllSkipsManagersMissingName(t *testing.T) {
	primary := NewManager()
	fallback := NewManager()

	onlyInFallback, _ := FromFunc("fallback-only", func(Context, ...any) (any, error) { return nil, nil })
	require.NoError(t, fallback.Register(onlyInFallback))

	onlyInPrimary, _ := FromFunc("primary-only", func(Context, ...any) (any, error) { return nil, nil })
	require.NoError(t, primary.Register(onlyInPrimary))

	chain := NewChain(primary, fallback)
	require.NoError(t, chain.PrepareAll(nil, "fallback-only", "primary-only"))
	require.Equal(t, StatusPrepared, onlyInFallback.Status())
	require.Equal(t, StatusPrepared, onlyInPrimary.Status())

	require.NoError(t, chain.CleanupAll(nil, "fallback-only", "primary-only"))
	require.Equal(t, StatusDead, onlyInFallback.Status())
	require.Equal(t, StatusDead, onlyInPrimary.Status())
}

func TestChainPrepareAllFailsWhenNoManagerHasName(t *testing.T) {
	chain := NewChain(NewManager(), NewManager())
	require.Error(t, chain.PrepareAll(nil, "nowhere"))
}
