package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

func newLight(id, page string) model.Device {
	return model.NewDevice(model.Descriptor{ID: id, Name: id, Page: page, Type: model.DeviceTypeLight})
}

func TestAddGetUpdate(t *testing.T) {
	r := New()
	r.Add(newLight("Single_1", "02"))
	assert.Equal(t, 1, r.Count())

	device, ok := r.Get("Single_1_page02")
	require.True(t, ok)
	assert.False(t, device.IsOn())

	// returned device is a copy, mutating it must not leak into the registry
	device.SetOn(true)
	stored, _ := r.Get("Single_1_page02")
	assert.False(t, stored.IsOn())

	ok = r.Update("Single_1_page02", func(d *model.Device) {
		d.SetOn(true)
	})
	require.True(t, ok)
	stored, _ = r.Get("Single_1_page02")
	assert.True(t, stored.IsOn())

	assert.False(t, r.Update("missing", func(d *model.Device) {}))
}

func TestAddOverwritesSameKey(t *testing.T) {
	r := New()
	r.Add(newLight("Single_1", "02"))
	renamed := newLight("Single_1", "02")
	renamed.Name = "Deckenlicht"
	r.Add(renamed)

	assert.Equal(t, 1, r.Count())
	device, _ := r.Get("Single_1_page02")
	assert.Equal(t, "Deckenlicht", device.Name)
}

func TestAllSnapshotIsSorted(t *testing.T) {
	r := New()
	r.Add(newLight("B", "01"))
	r.Add(newLight("A", "02"))
	r.Add(newLight("C", "01"))

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "A_page02", all[0].Key())
	assert.Equal(t, "B_page01", all[1].Key())
	assert.Equal(t, "C_page01", all[2].Key())
}

// Concurrent readers must never observe a half-written record while a writer
// is flipping state.
func TestConcurrentReadersDuringWrites(t *testing.T) {
	r := New()
	for i := 0; i < 10; i++ {
		r.Add(newLight(fmt.Sprintf("Single_%d", i), "01"))
	}

	var readers sync.WaitGroup
	stop := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			key := fmt.Sprintf("Single_%d_page01", i%10)
			on := i%2 == 0
			r.Update(key, func(d *model.Device) {
				d.SetOn(on)
			})
		}
	}()

	for g := 0; g < 4; g++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 1000; i++ {
				for _, device := range r.All() {
					// every record must be internally consistent
					_, isOnOff := device.State.(model.OnOff)
					assert.True(t, isOnOff)
					assert.NotEmpty(t, device.Key())
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	<-writerDone
}
