package agenthost

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthost/agent"
	"github.com/hupe1980/agenthost/core"
	"github.com/hupe1980/agenthost/model"
)

// capturingModel wraps MockModel and records the prompt of every request.
type capturingModel struct {
	*model.MockModel

	mu      sync.Mutex
	prompts []string
}

func (m *capturingModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	if len(req.Contents) > 0 {
		last := req.Contents[len(req.Contents)-1]
		var text string
		for _, p := range last.Parts {
			if tp, ok := p.(core.TextPart); ok {
				text += tp.Text
			}
		}
		m.mu.Lock()
		m.prompts = append(m.prompts, text)
		m.mu.Unlock()
	}
	return m.MockModel.Generate(ctx, req)
}

// countingFactory returns an AgentFactory that counts constructions and can
// be scripted to fail its first attempts.
func countingFactory(failures int) (AgentFactory, *int32, *int32) {
	var mu sync.Mutex
	builds := new(int32)
	releases := new(int32)

	return func(ctx context.Context) (*agent.Agent, func() error, error) {
		mu.Lock()
		defer mu.Unlock()
		*builds++
		if int(*builds) <= failures {
			return nil, nil, errors.New("provider spawn failed")
		}
		a := agent.New("assistant", model.NewMockModel("test"), nil,
			func(o *agent.Options) { o.EnableStreaming = false })
		release := func() error {
			mu.Lock()
			defer mu.Unlock()
			*releases++
			return nil
		}
		return a, release, nil
	}, builds, releases
}

func promptPayload(s string) core.InvocationPayload {
	return core.InvocationPayload{Prompt: &s}
}

func collectUnits(t *testing.T, units <-chan core.StreamUnit, errs <-chan error) []core.StreamUnit {
	t.Helper()
	var out []core.StreamUnit
	for u := range units {
		out = append(out, u)
	}
	require.NoError(t, <-errs)
	return out
}

func TestInvokeConstructsAgentOnce(t *testing.T) {
	factory, builds, _ := countingFactory(0)
	host := New(factory)

	const n = 25
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			units, errs, err := host.Invoke(context.Background(), promptPayload("hello"))
			assert.NoError(t, err)
			for range units {
			}
			assert.NoError(t, <-errs)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, *builds)
}

func TestInvokeReusesAgentAcrossRequests(t *testing.T) {
	factory, builds, _ := countingFactory(0)
	host := New(factory)

	for i := 0; i < 3; i++ {
		units, errs, err := host.Invoke(context.Background(), promptPayload("hello"))
		require.NoError(t, err)
		got := collectUnits(t, units, errs)
		require.NotEmpty(t, got)
	}

	assert.EqualValues(t, 1, *builds)
}

func TestInvokeFallbackPromptOnEmptyPayload(t *testing.T) {
	m := &capturingModel{MockModel: model.NewMockModel("test")}
	host := New(func(ctx context.Context) (*agent.Agent, func() error, error) {
		a := agent.New("assistant", m, nil, func(o *agent.Options) { o.EnableStreaming = false })
		return a, func() error { return nil }, nil
	})

	units, errs, err := host.Invoke(context.Background(), core.InvocationPayload{})
	require.NoError(t, err)
	collectUnits(t, units, errs)

	require.Len(t, m.prompts, 1)
	assert.Equal(t, FallbackPrompt, m.prompts[0])
}

func TestInvokeRelaysOnlyEventUnits(t *testing.T) {
	factory, _, _ := countingFactory(0)
	host := New(factory)

	units, errs, err := host.Invoke(context.Background(), promptPayload("hello"))
	require.NoError(t, err)
	got := collectUnits(t, units, errs)

	// The lifecycle start/result units are filtered out; only generation
	// events pass through, in arrival order.
	require.NotEmpty(t, got)
	for _, u := range got {
		assert.True(t, u.HasEvent())
	}
}

func TestInvokeStreamingPreservesOrder(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddResponse("hi", "abc")
	host := New(func(ctx context.Context) (*agent.Agent, func() error, error) {
		a := agent.New("assistant", m, nil)
		return a, func() error { return nil }, nil
	})

	units, errs, err := host.Invoke(context.Background(), promptPayload("hi"))
	require.NoError(t, err)
	got := collectUnits(t, units, errs)

	// Three char partials followed by the final turn event.
	require.Len(t, got, 4)
	var text string
	for _, u := range got[:3] {
		ev := u[core.EventField].(core.Event)
		require.True(t, ev.IsPartial())
		text += ev.Text()
	}
	assert.Equal(t, "abc", text)

	final := got[3][core.EventField].(core.Event)
	assert.True(t, final.IsFinalResponse())
	assert.Equal(t, "abc", final.Text())
}

func TestInvokeInitializationFailureAllowsRetry(t *testing.T) {
	factory, builds, _ := countingFactory(1)
	host := New(factory)

	_, _, err := host.Invoke(context.Background(), promptPayload("hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent initialization")

	// The failed attempt is not cached; the next invocation retries.
	units, errs, err := host.Invoke(context.Background(), promptPayload("hello"))
	require.NoError(t, err)
	collectUnits(t, units, errs)

	assert.EqualValues(t, 2, *builds)
}

func TestShutdownReleasesProvider(t *testing.T) {
	factory, _, releases := countingFactory(0)
	host := New(factory)

	units, errs, err := host.Invoke(context.Background(), promptPayload("hello"))
	require.NoError(t, err)
	collectUnits(t, units, errs)

	require.NoError(t, host.Shutdown())
	assert.EqualValues(t, 1, *releases)
}

func TestShutdownTwiceIsSafe(t *testing.T) {
	factory, _, _ := countingFactory(0)
	host := New(factory)

	units, errs, err := host.Invoke(context.Background(), promptPayload("hello"))
	require.NoError(t, err)
	collectUnits(t, units, errs)

	require.NoError(t, host.Shutdown())
	require.NoError(t, host.Shutdown())
}

func TestShutdownWithoutInitialization(t *testing.T) {
	factory, builds, releases := countingFactory(0)
	host := New(factory)

	require.NoError(t, host.Shutdown())
	assert.EqualValues(t, 0, *builds)
	assert.EqualValues(t, 0, *releases)
}
