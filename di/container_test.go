package di_test

import (
	"sync"
	"testing"

	"github.com/agentcore/core/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct{ id int }

func TestResolveUnregisteredTypeIsError(t *testing.T) {
	c := di.New(false)
	_, err := di.Resolve[*widget](c)
	assert.Error(t, err)
}

func TestSingletonIsCachedAcrossResolves(t *testing.T) {
	c := di.New(false)
	calls := 0
	require.NoError(t, di.Register[*widget](c, di.Singleton, func(*di.Container) (any, error) {
		calls++
		return &widget{id: calls}, nil
	}, false))

	first, err := di.Resolve[*widget](c)
	require.NoError(t, err)
	second, err := di.Resolve[*widget](c)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestTransientBuildsFreshInstanceEveryResolve(t *testing.T) {
	c := di.New(false)
	calls := 0
	require.NoError(t, di.Register[*widget](c, di.Transient, func(*di.Container) (any, error) {
		calls++
		return &widget{id: calls}, nil
	}, false))

	first, err := di.Resolve[*widget](c)
	require.NoError(t, err)
	second, err := di.Resolve[*widget](c)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, calls)
}

func TestScopedIsCachedPerScopeNotAcrossScopes(t *testing.T) {
	c := di.New(false)
	calls := 0
	require.NoError(t, di.Register[*widget](c, di.Scoped, func(*di.Container) (any, error) {
		calls++
		return &widget{id: calls}, nil
	}, false))

	scopeA := c.Scope()
	scopeB := c.Scope()

	a1, err := di.Resolve[*widget](scopeA)
	require.NoError(t, err)
	a2, err := di.Resolve[*widget](scopeA)
	require.NoError(t, err)
	b1, err := di.Resolve[*widget](scopeB)
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b1)
	assert.Equal(t, 2, calls)
}

func TestDuplicateRegistrationWithoutReplaceIsError(t *testing.T) {
	c := di.New(false)
	factory := func(*di.Container) (any, error) { return &widget{}, nil }
	require.NoError(t, di.Register[*widget](c, di.Singleton, factory, false))
	err := di.Register[*widget](c, di.Singleton, factory, false)
	assert.Error(t, err)
}

func TestReplaceRegistrationOverridesFactory(t *testing.T) {
	c := di.New(false)
	require.NoError(t, di.Register[*widget](c, di.Singleton, func(*di.Container) (any, error) {
		return &widget{id: 1}, nil
	}, false))
	require.NoError(t, di.Register[*widget](c, di.Singleton, func(*di.Container) (any, error) {
		return &widget{id: 2}, nil
	}, true))

	got, err := di.Resolve[*widget](c)
	require.NoError(t, err)
	assert.Equal(t, 2, got.id)
}

func TestFactoryPanicYieldsStructuredResolveError(t *testing.T) {
	c := di.New(false)
	require.NoError(t, di.Register[*widget](c, di.Transient, func(*di.Container) (any, error) {
		panic("boom")
	}, false))

	_, err := di.Resolve[*widget](c)
	require.Error(t, err)
	var resolveErr *di.ResolveError
	require.ErrorAs(t, err, &resolveErr)
}

func TestDevModeDetectsCycle(t *testing.T) {
	c := di.New(true)
	require.NoError(t, di.Register[*widget](c, di.Transient, func(container *di.Container) (any, error) {
		_, err := di.Resolve[*widget](container)
		return nil, err
	}, false))

	_, err := di.Resolve[*widget](c)
	require.Error(t, err)
	var cycleErr *di.CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestConcurrentResolveIsSafe(t *testing.T) {
	c := di.New(false)
	require.NoError(t, di.Register[*widget](c, di.Singleton, func(*di.Container) (any, error) {
		return &widget{id: 1}, nil
	}, false))

	var wg sync.WaitGroup
	results := make([]*widget, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := di.Resolve[*widget](c)
			if err == nil {
				results[i] = v
			}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Same(t, results[0], r)
	}
}
