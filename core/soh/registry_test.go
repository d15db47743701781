package soh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/soh/infra/logger"
)

func TestRegistryRefusesDuplicate(t *testing.T) {
	sink := &progressSink{}
	reg := NewRegistry(logger.NopLogger{}, nil, sink)
	release := make(chan struct{})
	ctx := context.Background()

	require.True(t, reg.Start(ctx, 1, func(context.Context) { <-release }))
	assert.False(t, reg.Start(ctx, 1, func(context.Context) { t.Error("duplicate task ran") }))
	require.True(t, reg.Start(ctx, 2, func(context.Context) { <-release }))
	assert.True(t, reg.Running(1))
	assert.Equal(t, []int64{1, 2}, reg.IDs())
	assert.Equal(t, 2, reg.Len())

	close(release)
	reg.Wait()
	assert.Zero(t, reg.Len())
	assert.False(t, reg.Running(1))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 0, sink.active[len(sink.active)-1])
}

func TestRegistryCancelAndShutdown(t *testing.T) {
	reg := NewRegistry(logger.NopLogger{}, nil, nil)
	ctx := context.Background()
	stopped := make(chan int64, 2)
	for _, id := range []int64{1, 2} {
		id := id
		reg.Start(ctx, id, func(ctx context.Context) {
			<-ctx.Done()
			stopped <- id
		})
	}
	assert.True(t, reg.Cancel(1))
	assert.False(t, reg.Cancel(42))
	select {
	case id := <-stopped:
		assert.Equal(t, int64(1), id)
	case <-time.After(time.Second):
		t.Fatal("task not canceled")
	}
	reg.Shutdown()
	assert.Zero(t, reg.Len())
}

func TestRegistryRecoversPanics(t *testing.T) {
	mon := &recordMonitor{}
	reg := NewRegistry(logger.NopLogger{}, mon, nil)
	reg.Start(context.Background(), 5, func(context.Context) { panic("boom") })
	reg.Wait()
	_, panics := mon.counts()
	assert.Equal(t, 1, panics)
	assert.Equal(t, "5", mon.lastTag["schedule_id"])
	assert.True(t, reg.Start(context.Background(), 5, func(context.Context) {}), "id is free again")
	reg.Wait()
}
