package event

import (
	"errors"
	"testing"

	"github.com/QYUbit/Tether/pkg/tlog"
	"github.com/QYUbit/Tether/pkg/tlog/logmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type call struct {
	data    any
	session string
}

func recorder(calls *[]call) func(any, string) error {
	return func(data any, session string) error {
		*calls = append(*calls, call{data: data, session: session})
		return nil
	}
}

func TestDispatchInvokesHandlerOnce(t *testing.T) {
	r := NewRegistry[string](tlog.Nop())

	var calls []call
	r.RegisterFunc("ping", recorder(&calls))

	ok := r.Dispatch("ping", "hello", "s1")
	require.True(t, ok)
	require.Len(t, calls, 1)
	assert.Equal(t, call{data: "hello", session: "s1"}, calls[0])
}

func TestDispatchUnknownEvent(t *testing.T) {
	r := NewRegistry[string](tlog.Nop())
	r.RegisterFunc("ping", func(any, string) error { return nil })

	assert.NotPanics(t, func() {
		assert.False(t, r.Dispatch("pong", nil, ""))
	})
}

func TestDispatchOrder(t *testing.T) {
	r := NewRegistry[string](tlog.Nop())

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		r.RegisterFunc("tick", func(any, string) error {
			order = append(order, i)
			return nil
		})
	}

	r.Dispatch("tick", nil, "")
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestDispatchIsolatesFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := logmock.NewMockLogger(ctrl)
	logger.EXPECT().Error("event handler failed", gomock.Any()).Times(2)

	r := NewRegistry[string](logger)

	var ran []string
	r.RegisterFunc("boom", func(any, string) error {
		ran = append(ran, "first")
		return errors.New("nope")
	})
	r.RegisterFunc("boom", func(any, string) error {
		ran = append(ran, "second")
		panic("worse")
	})
	r.RegisterFunc("boom", func(any, string) error {
		ran = append(ran, "third")
		return nil
	})

	assert.True(t, r.Dispatch("boom", nil, ""))
	assert.Equal(t, []string{"first", "second", "third"}, ran)
}

func TestUnregisterCountsRemoved(t *testing.T) {
	r := NewRegistry[string](tlog.Nop())

	var calls []call
	a := r.RegisterFunc("chat", recorder(&calls))
	b := r.RegisterFunc("chat", recorder(&calls))

	assert.Equal(t, 0, r.Unregister("unknown", a))
	assert.Equal(t, 0, r.Unregister("chat", HandlerID(999)))
	assert.Equal(t, 1, r.Unregister("chat", a))
	assert.Equal(t, 0, r.Unregister("chat", a))
	assert.Equal(t, 1, r.Count("chat"))

	r.Dispatch("chat", 1, "")
	assert.Len(t, calls, 1)

	assert.Equal(t, 1, r.Unregister("chat", b))
	assert.False(t, r.Has("chat"))
	assert.False(t, r.Dispatch("chat", 1, ""))
}

func TestUnregisterDuringDispatch(t *testing.T) {
	r := NewRegistry[string](tlog.Nop())

	var ran []string
	var second HandlerID
	r.RegisterFunc("once", func(any, string) error {
		ran = append(ran, "first")
		r.Unregister("once", second)
		r.RegisterFunc("once", func(any, string) error {
			ran = append(ran, "late")
			return nil
		})
		return nil
	})
	second = r.RegisterFunc("once", func(any, string) error {
		ran = append(ran, "second")
		return nil
	})

	r.Dispatch("once", nil, "")
	assert.Equal(t, []string{"first", "second"}, ran)

	ran = nil
	r.Dispatch("once", nil, "")
	assert.Equal(t, []string{"first", "late"}, ran)
}

func TestDispatchAppliesSchema(t *testing.T) {
	r := NewRegistry[string](tlog.Nop())
	r.SetSchema("move", []string{"x", "y"})

	var calls []call
	r.RegisterFunc("move", recorder(&calls))

	r.Dispatch("move", []any{3, 4}, "")

	named := map[string]any{"x": 5, "y": 6}
	r.Dispatch("move", named, "")
	r.Dispatch("move", "raw", "")

	require.Len(t, calls, 3)
	assert.Equal(t, map[string]any{"x": 3, "y": 4}, calls[0].data)
	assert.Equal(t, named, calls[1].data)
	assert.Equal(t, "raw", calls[2].data)
}

func TestSetSchemaReplaces(t *testing.T) {
	r := NewRegistry[string](tlog.Nop())
	r.SetSchema("move", []string{"x", "y"})
	r.SetSchema("move", []string{"dx"})

	s, ok := r.Schema("move")
	require.True(t, ok)
	assert.Equal(t, Schema{"dx"}, s)

	r.SetSchema("move", nil)
	_, ok = r.Schema("move")
	assert.False(t, ok)
}

func TestEvents(t *testing.T) {
	r := NewRegistry[string](nil)
	r.RegisterFunc("b", func(any, string) error { return nil })
	r.RegisterFunc("a", func(any, string) error { return nil })

	assert.Equal(t, []string{"a", "b"}, r.Events())
}
