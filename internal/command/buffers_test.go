package command

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

func TestMemoryTypeIndex(t *testing.T) {
	types := []core1_0.MemoryType{
		{PropertyFlags: core1_0.MemoryPropertyDeviceLocal},
		{PropertyFlags: core1_0.MemoryPropertyHostVisible},
		{PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent},
		{PropertyFlags: core1_0.MemoryPropertyDeviceLocal | core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent},
	}
	hostCoherent := core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent

	tests := []struct {
		name       string
		filter     uint32
		properties core1_0.MemoryPropertyFlags
		want       int
	}{
		{"first device local", 0b1111, core1_0.MemoryPropertyDeviceLocal, 0},
		{"first host coherent", 0b1111, hostCoherent, 2},
		{"filter skips allowed type", 0b1000, hostCoherent, 3},
		{"filter restricts device local", 0b1010, core1_0.MemoryPropertyDeviceLocal, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := memoryTypeIndex(types, tt.filter, tt.properties)
			if err != nil {
				t.Fatalf("memoryTypeIndex() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("memoryTypeIndex() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMemoryTypeIndexNoMatch(t *testing.T) {
	types := []core1_0.MemoryType{{PropertyFlags: core1_0.MemoryPropertyDeviceLocal}}
	_, err := memoryTypeIndex(types, 0b1, core1_0.MemoryPropertyHostVisible)
	if !errors.Is(err, ErrNoMemoryType) {
		t.Errorf("error = %v, want ErrNoMemoryType", err)
	}
}

func TestUploadVerticesRejectsEmptyData(t *testing.T) {
	r := &Recorder{}
	if _, err := r.UploadVertices(nil, nil, nil, 0); err == nil {
		t.Error("UploadVertices(nil) succeeded, want error")
	}
}

func TestRecorderDestroyWithoutBuffers(t *testing.T) {
	r := &Recorder{}
	r.Destroy()
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}
