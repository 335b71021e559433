package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_RunsInRegistrationOrder(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.On("preCreateActor", func(ev *Event) bool {
		order = append(order, "first")
		return true
	})
	bus.On("preCreateActor", func(ev *Event) bool {
		order = append(order, "second")
		return true
	})

	proceed := bus.Call(&Event{Name: "preCreateActor"})

	require.True(t, proceed)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestCall_VetoDoesNotShortCircuit(t *testing.T) {
	bus := NewBus()
	ran := 0
	bus.On("preDeleteItem", func(ev *Event) bool {
		ran++
		return false
	})
	bus.On("preDeleteItem", func(ev *Event) bool {
		ran++
		return true
	})

	proceed := bus.Call(&Event{Name: "preDeleteItem"})

	assert.False(t, proceed, "any false return vetoes")
	assert.Equal(t, 2, ran, "later subscribers still run")
}

func TestCallAll_IgnoresReturnValues(t *testing.T) {
	bus := NewBus()
	ran := 0
	bus.On("createActor", func(ev *Event) bool {
		ran++
		return false
	})
	bus.On("createActor", func(ev *Event) bool {
		ran++
		return true
	})

	bus.CallAll(&Event{Name: "createActor"})

	assert.Equal(t, 2, ran)
}

func TestOnce_FiresExactlyOnce(t *testing.T) {
	bus := NewBus()
	ran := 0
	bus.Once("ready", func(ev *Event) bool {
		ran++
		return true
	})

	bus.CallAll(&Event{Name: "ready"})
	bus.CallAll(&Event{Name: "ready"})

	assert.Equal(t, 1, ran)
}

func TestOff_RemovesSubscriber(t *testing.T) {
	bus := NewBus()
	ran := false
	id := bus.On("updateScene", func(ev *Event) bool {
		ran = true
		return true
	})
	bus.Off("updateScene", id)

	bus.CallAll(&Event{Name: "updateScene"})

	assert.False(t, ran)
}

func TestCall_PanicIsCaughtAndDoesNotVeto(t *testing.T) {
	bus := NewBus()
	bus.On("preUpdateActor", func(ev *Event) bool {
		panic("boom")
	})
	after := false
	bus.On("preUpdateActor", func(ev *Event) bool {
		after = true
		return true
	})

	proceed := bus.Call(&Event{Name: "preUpdateActor"})

	assert.True(t, proceed, "a crashed handler must not veto")
	assert.True(t, after, "subsequent handlers still run")
}

func TestCall_MixedOnceAndPersistent(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.Once("closeActor", func(ev *Event) bool {
		order = append(order, "once")
		return true
	})
	bus.On("closeActor", func(ev *Event) bool {
		order = append(order, "always")
		return true
	})

	bus.Call(&Event{Name: "closeActor"})
	bus.Call(&Event{Name: "closeActor"})

	assert.Equal(t, []string{"once", "always", "always"}, order)
}

func TestName(t *testing.T) {
	assert.Equal(t, "preCreateActor", Name("preCreate", "Actor"))
	assert.Equal(t, "deleteItem", Name("delete", "Item"))
}
