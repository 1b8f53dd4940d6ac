package fault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjector_DisabledPassesThrough(t *testing.T) {
	i := NewInjector()
	i.InjectError("checkout", errors.New("boom"))

	err := i.Check(context.Background(), "checkout", "/mnt/repo")
	assert.NoError(t, err)
}

func TestInjector_InjectError(t *testing.T) {
	i := NewInjector()
	i.Enable()
	boom := errors.New("boom")
	i.InjectError("checkout", boom)

	err := i.Check(context.Background(), "checkout", "/mnt/repo")
	require.ErrorIs(t, err, boom)

	// Fires once, then clears.
	err = i.Check(context.Background(), "checkout", "/mnt/repo")
	assert.NoError(t, err)
}

func TestInjector_InjectDelay(t *testing.T) {
	i := NewInjector()
	i.Enable()
	i.InjectDelay("inodeCheckout", 20*time.Millisecond)

	start := time.Now()
	err := i.Check(context.Background(), "inodeCheckout", "/mnt/repo")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestInjector_DelayCanceledByContext(t *testing.T) {
	i := NewInjector()
	i.Enable()
	i.InjectDelay("checkout", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := i.Check(ctx, "checkout", "/mnt/repo")
	assert.Error(t, err)
}

func TestInjector_UnarmedKeyPassesThrough(t *testing.T) {
	i := NewInjector()
	i.Enable()
	assert.NoError(t, i.Check(context.Background(), "checkout", "/mnt/repo"))
}
