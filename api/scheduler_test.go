package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pharmacy-ledger/pharmacy"
	"github.com/warp/pharmacy-ledger/pharmacy/store"
)

func TestAutosave_SkipsWhenUnchanged(t *testing.T) {
	// GIVEN: A ledger with one medicine and a scheduler over a memory store
	ctx := context.Background()
	mem := store.NewMemory()
	ledger := pharmacy.New(pharmacy.DefaultConfig())
	_, err := ledger.AddMedicine(ctx, pharmacy.MedicineInput{Name: "A", Quantity: 1, Expiry: pharmacy.MustDate(1, 1, 2030)})
	require.NoError(t, err)
	s := NewAutosaveScheduler(ledger, mem, nil)

	// WHEN: Saving twice with no change in between
	saved, err := s.saveIfChanged(ctx)
	require.NoError(t, err)
	assert.True(t, saved)
	saved, err = s.saveIfChanged(ctx)
	require.NoError(t, err)

	// THEN: Only the first save reaches the store
	assert.False(t, saved)
	assert.Equal(t, 1, mem.Saves())

	// A mutation makes the next tick save again
	_, err = ledger.AddMedicine(ctx, pharmacy.MedicineInput{Name: "B", Quantity: 1, Expiry: pharmacy.MustDate(1, 1, 2030)})
	require.NoError(t, err)
	saved, err = s.saveIfChanged(ctx)
	require.NoError(t, err)
	assert.True(t, saved)

	// SaveNow ignores the change check
	require.NoError(t, s.SaveNow(ctx))
	assert.Equal(t, 3, mem.Saves())
}

type brokenPersister struct{}

func (brokenPersister) Load(context.Context) (pharmacy.Snapshot, error) { return pharmacy.Snapshot{}, nil }
func (brokenPersister) Save(context.Context, pharmacy.Snapshot) error {
	return errors.New("read-only filesystem")
}

func TestAutosave_FailureIsRetried(t *testing.T) {
	ctx := context.Background()
	s := NewAutosaveScheduler(pharmacy.New(pharmacy.DefaultConfig()), brokenPersister{}, nil)

	_, err := s.saveIfChanged(ctx)
	assert.Error(t, err)
	// A failed save is not remembered as the last one
	_, err = s.saveIfChanged(ctx)
	assert.Error(t, err)
	assert.Error(t, s.SaveNow(ctx))
}

func TestAutosave_StartStop(t *testing.T) {
	mem := store.NewMemory()
	s := NewAutosaveScheduler(pharmacy.New(pharmacy.DefaultConfig()), mem, nil)
	s.Interval = 5 * time.Millisecond

	s.Start()
	s.Start()
	require.Eventually(t, func() bool { return mem.Saves() >= 1 }, time.Second, time.Millisecond)
	s.Stop()
	s.Stop()

	// Nothing changed after the first save, so ticks did not save again
	assert.Equal(t, 1, mem.Saves())
}

func TestAutosave_Disabled(t *testing.T) {
	mem := store.NewMemory()
	s := NewAutosaveScheduler(pharmacy.New(pharmacy.DefaultConfig()), mem, nil)
	s.Interval = 0

	s.Start()
	s.Stop()

	assert.Equal(t, 0, mem.Saves())
}
