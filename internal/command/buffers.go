package command

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

var ErrNoMemoryType = errors.New("failed to find a suitable memory type")

// VertexBuffer is a device-local buffer filled once at startup.
type VertexBuffer struct {
	Buffer core1_0.Buffer
	Memory core1_0.DeviceMemory
	Count  int
}

func (v *VertexBuffer) Destroy() {
	if v.Buffer != nil {
		v.Buffer.Destroy(nil)
		v.Buffer = nil
	}
	if v.Memory != nil {
		v.Memory.Free(nil)
		v.Memory = nil
	}
}

func memoryTypeIndex(memoryTypes []core1_0.MemoryType, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	for i, memoryType := range memoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Mark(errors.Newf("type filter %#b, properties %v", typeFilter, properties), ErrNoMemoryType)
}

type uploader struct {
	device         core1_0.Device
	physicalDevice core1_0.PhysicalDevice
	queue          core1_0.Queue
	pool           core1_0.CommandPool
}

func (u *uploader) createBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	buffer, _, err := u.device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, nil, err
	}

	memRequirements := buffer.MemoryRequirements()
	typeIndex, err := memoryTypeIndex(u.physicalDevice.MemoryProperties().MemoryTypes, memRequirements.MemoryTypeBits, properties)
	if err != nil {
		return buffer, nil, err
	}

	memory, _, err := u.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: typeIndex,
	})
	if err != nil {
		return buffer, nil, err
	}

	_, err = buffer.BindBufferMemory(memory, 0)
	return buffer, memory, err
}

func writeData(memory core1_0.DeviceMemory, offset int, data []byte) error {
	memoryPtr, _, err := memory.Map(offset, len(data), 0)
	if err != nil {
		return err
	}
	defer memory.Unmap()

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), len(data))
	copy(dataBuffer, data)
	return nil
}

func (u *uploader) copyBuffer(srcBuffer core1_0.Buffer, dstBuffer core1_0.Buffer, size int) error {
	buffers, _, err := u.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        u.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return err
	}
	buffer := buffers[0]
	defer u.device.FreeCommandBuffers(buffers)

	_, err = buffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return err
	}

	err = buffer.CmdCopyBuffer(srcBuffer, dstBuffer, []core1_0.BufferCopy{
		{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	})
	if err != nil {
		return err
	}

	_, err = buffer.End()
	if err != nil {
		return err
	}

	_, err = u.queue.Submit(nil, []core1_0.SubmitInfo{
		{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	})
	if err != nil {
		return err
	}

	_, err = u.queue.WaitIdle()
	return err
}

// UploadVertices copies encoded vertex data through a host-visible staging
// buffer into a device-local vertex buffer and waits for the copy to finish.
func (r *Recorder) UploadVertices(physicalDevice core1_0.PhysicalDevice, queue core1_0.Queue, data []byte, count int) (*VertexBuffer, error) {
	if len(data) == 0 {
		return nil, errors.New("no vertex data to upload")
	}
	u := &uploader{device: r.device, physicalDevice: physicalDevice, queue: queue, pool: r.pool}
	bufferSize := len(data)

	stagingBuffer, stagingBufferMemory, err := u.createBuffer(bufferSize, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if stagingBuffer != nil {
		defer stagingBuffer.Destroy(nil)
	}
	if stagingBufferMemory != nil {
		defer stagingBufferMemory.Free(nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}

	err = writeData(stagingBufferMemory, 0, data)
	if err != nil {
		return nil, errors.Wrap(err, "fill staging buffer")
	}

	vertexBuffer := &VertexBuffer{Count: count}
	vertexBuffer.Buffer, vertexBuffer.Memory, err = u.createBuffer(bufferSize, core1_0.BufferUsageTransferDst|core1_0.BufferUsageVertexBuffer, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		vertexBuffer.Destroy()
		return nil, errors.Wrap(err, "create vertex buffer")
	}

	err = u.copyBuffer(stagingBuffer, vertexBuffer.Buffer, bufferSize)
	if err != nil {
		vertexBuffer.Destroy()
		return nil, errors.Wrap(err, "copy staging buffer")
	}

	return vertexBuffer, nil
}
