// Package command owns the command pool and the pre-recorded command buffer
// for every swapchain image.
package command

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

var (
	ErrPoolCreation     = errors.New("failed to create command pool")
	ErrCommandRecording = errors.New("failed to record command buffer")
)

// Target is everything one recording pass draws into.
type Target struct {
	RenderPass   core1_0.RenderPass
	Pipeline     core1_0.Pipeline
	Framebuffers []core1_0.Framebuffer
	Extent       core1_0.Extent2D
}

type Recorder struct {
	device  core1_0.Device
	pool    core1_0.CommandPool
	buffers []core1_0.CommandBuffer

	ClearColor [4]float32
}

func NewRecorder(device core1_0.Device, graphicsFamily int) (*Recorder, error) {
	pool, _, err := device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: &graphicsFamily,
	})
	if err != nil {
		return nil, errors.Mark(err, ErrPoolCreation)
	}

	return &Recorder{
		device:     device,
		pool:       pool,
		ClearColor: [4]float32{0, 0, 0, 1},
	}, nil
}

func (r *Recorder) Pool() core1_0.CommandPool { return r.pool }

func (r *Recorder) Len() int { return len(r.buffers) }

func (r *Recorder) Buffer(imageIndex int) core1_0.CommandBuffer {
	return r.buffers[imageIndex]
}

// Free returns the per-image buffers to the pool.
func (r *Recorder) Free() {
	if len(r.buffers) > 0 {
		r.device.FreeCommandBuffers(r.buffers)
		r.buffers = nil
	}
}

// RecordAll replaces the per-image buffers with one primary buffer per
// framebuffer, each drawing vertexCount vertices from vertexBuffer.
func (r *Recorder) RecordAll(target Target, vertexBuffer core1_0.Buffer, vertexCount int) error {
	r.Free()

	buffers, _, err := r.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: len(target.Framebuffers),
	})
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "allocate %d buffers", len(target.Framebuffers)), ErrCommandRecording)
	}
	r.buffers = buffers

	for bufferIdx, buffer := range buffers {
		err = r.record(buffer, target, target.Framebuffers[bufferIdx], vertexBuffer, vertexCount)
		if err != nil {
			r.Free()
			return errors.Mark(errors.Wrapf(err, "image %d", bufferIdx), ErrCommandRecording)
		}
	}

	return nil
}

func (r *Recorder) record(buffer core1_0.CommandBuffer, target Target, framebuffer core1_0.Framebuffer, vertexBuffer core1_0.Buffer, vertexCount int) error {
	_, err := buffer.Begin(core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return err
	}

	err = buffer.CmdBeginRenderPass(core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  target.RenderPass,
			Framebuffer: framebuffer,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: target.Extent,
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat(r.ClearColor),
			},
		})
	if err != nil {
		return err
	}

	buffer.CmdBindPipeline(core1_0.PipelineBindPointGraphics, target.Pipeline)
	buffer.CmdSetViewport([]core1_0.Viewport{
		{
			X:        0,
			Y:        0,
			Width:    float32(target.Extent.Width),
			Height:   float32(target.Extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		},
	})
	buffer.CmdSetLineWidth(1.0)
	buffer.CmdBindVertexBuffers([]core1_0.Buffer{vertexBuffer}, []int{0})
	buffer.CmdDraw(vertexCount, 1, 0, 0)
	buffer.CmdEndRenderPass()

	_, err = buffer.End()
	return err
}

// Destroy frees the buffers and the pool.
func (r *Recorder) Destroy() {
	r.Free()
	if r.pool != nil {
		r.pool.Destroy(nil)
		r.pool = nil
	}
}
