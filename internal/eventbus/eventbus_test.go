package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ n int }
type pong struct{}

func TestEmitDispatchesByType(t *testing.T) {
	b := New()
	var got []int
	On(b, func(_ context.Context, p ping) { got = append(got, p.n) })
	On(b, func(_ context.Context, p ping) { got = append(got, p.n*10) })
	pongs := 0
	On(b, func(context.Context, pong) { pongs++ })

	Emit(context.Background(), b, ping{n: 2})
	assert.Equal(t, []int{2, 20}, got)
	assert.Equal(t, 0, pongs)
}

func TestUnsubscribeRemovesOnlyItsHandler(t *testing.T) {
	b := New()
	var got []string
	first := On(b, func(context.Context, ping) { got = append(got, "first") })
	On(b, func(context.Context, ping) { got = append(got, "second") })

	first()
	first()
	Emit(context.Background(), b, ping{})
	assert.Equal(t, []string{"second"}, got)
}

func TestGlobalBusDisabledByDefault(t *testing.T) {
	Use(nil)
	called := false
	unsubscribe := Subscribe(func(context.Context, ping) { called = true })
	Publish(context.Background(), ping{})
	unsubscribe()
	assert.False(t, called)
	assert.False(t, Enabled())

	Use(New())
	defer Use(nil)
	defer Subscribe(func(context.Context, ping) { called = true })()
	Publish(context.Background(), ping{})
	assert.True(t, called)
}
