package driver

import (
	"io/fs"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/triangle-loop/internal/command"
	"github.com/vkngwrapper/triangle-loop/internal/device"
	"github.com/vkngwrapper/triangle-loop/internal/frame"
	"github.com/vkngwrapper/triangle-loop/internal/mesh"
	"github.com/vkngwrapper/triangle-loop/internal/shader"
	"github.com/vkngwrapper/triangle-loop/internal/swapchain"
)

type RendererOptions struct {
	Shaders        fs.FS
	ShaderPaths    shader.Paths
	PreferMailbox  bool
	FramesInFlight int
	ClearColor     [4]float32
	Vertices       []mesh.Vertex
}

// VulkanRenderer owns everything created from the logical device: the
// presentation chain, the command recorder, the frame slot ring and the
// vertex buffer.
type VulkanRenderer struct {
	logger *slog.Logger
	ctx    *device.Context

	recorder *command.Recorder
	vertices *command.VertexBuffer
	ring     *frame.Ring
	chain    *swapchain.Chain
}

// NewVulkanRenderer builds every device-level resource for the first frame.
// On failure whatever was built is destroyed again.
func NewVulkanRenderer(ctx *device.Context, width, height int, opts RendererOptions, logger *slog.Logger) (*VulkanRenderer, error) {
	r := &VulkanRenderer{logger: logger, ctx: ctx}
	err := r.init(width, height, opts)
	if err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *VulkanRenderer) init(width, height int, opts RendererOptions) error {
	indices := r.ctx.Indices()

	var err error
	r.recorder, err = command.NewRecorder(r.ctx.Device(), *indices.GraphicsFamily)
	if err != nil {
		return err
	}
	r.recorder.ClearColor = opts.ClearColor

	data, err := mesh.Encode(opts.Vertices)
	if err != nil {
		return err
	}
	r.vertices, err = r.recorder.UploadVertices(r.ctx.PhysicalDevice(), r.ctx.GraphicsQueue(), data, len(opts.Vertices))
	if err != nil {
		return err
	}

	r.ring, err = frame.NewRing(r.ctx.Device(), opts.FramesInFlight)
	if err != nil {
		return err
	}

	r.chain = swapchain.New(r.ctx.Device(), r.ctx.PhysicalDevice(), r.ctx.Surface(), indices, swapchain.Options{
		Shaders:       opts.Shaders,
		ShaderPaths:   opts.ShaderPaths,
		PreferMailbox: opts.PreferMailbox,
	}, r.logger)
	err = r.chain.Build(core1_0.Extent2D{Width: width, Height: height})
	if err != nil {
		return err
	}

	return r.record()
}

func (r *VulkanRenderer) record() error {
	return r.recorder.RecordAll(command.Target{
		RenderPass:   r.chain.RenderPass(),
		Pipeline:     r.chain.Pipeline(),
		Framebuffers: r.chain.Framebuffers(),
		Extent:       r.chain.Extent(),
	}, r.vertices.Buffer, r.vertices.Count)
}

func (r *VulkanRenderer) Ring() *frame.Ring       { return r.ring }
func (r *VulkanRenderer) Chain() *swapchain.Chain { return r.chain }

func (r *VulkanRenderer) WaitForSlot(slot int, timeout time.Duration) error {
	if slot < 0 || slot >= r.ring.Len() {
		return errors.AssertionFailedf("slot %d outside ring of %d", slot, r.ring.Len())
	}
	fence := r.ring.Slot(slot).InFlight

	res, err := r.ctx.Device().WaitForFences(true, timeout, []core1_0.Fence{fence})
	if res == core1_0.VKTimeout {
		return errors.Mark(errors.Newf("fence of slot %d not signaled after %s", slot, timeout), ErrFrameTimeout)
	}
	return errors.Wrapf(err, "wait for fence of slot %d", slot)
}

func (r *VulkanRenderer) Acquire(slot int, timeout time.Duration) (int, Status, error) {
	imageIndex, res, err := r.chain.Swapchain().AcquireNextImage(timeout, r.ring.Current().ImageAvailable, nil)
	status, err := classify(res, err, ErrAcquire)
	if err != nil {
		return 0, status, errors.Wrapf(err, "slot %d", slot)
	}
	return imageIndex, status, nil
}

func (r *VulkanRenderer) Submit(slot, image int) error {
	current := r.ring.Current()

	_, err := r.ctx.Device().ResetFences([]core1_0.Fence{current.InFlight})
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "reset fence of slot %d", slot), ErrSubmit)
	}

	_, err = r.ctx.GraphicsQueue().Submit(current.InFlight, []core1_0.SubmitInfo{
		{
			WaitSemaphores:   []core1_0.Semaphore{current.ImageAvailable},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{r.recorder.Buffer(image)},
			SignalSemaphores: []core1_0.Semaphore{current.RenderFinished},
		},
	})
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "slot %d image %d", slot, image), ErrSubmit)
	}
	return nil
}

func (r *VulkanRenderer) Present(slot, image int) (Status, error) {
	res, err := r.chain.Extension().QueuePresent(r.ctx.PresentQueue(), khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{r.ring.Current().RenderFinished},
		Swapchains:     []khr_swapchain.Swapchain{r.chain.Swapchain()},
		ImageIndices:   []int{image},
	})
	status, err := classify(res, err, ErrPresent)
	if err != nil {
		return status, errors.Wrapf(err, "slot %d image %d", slot, image)
	}
	return status, nil
}

func (r *VulkanRenderer) WaitIdle() error {
	return r.ctx.WaitIdle()
}

// Recreate must only run while the device is idle.
func (r *VulkanRenderer) Recreate(width, height int) (int, error) {
	r.recorder.Free()

	err := r.chain.Rebuild(core1_0.Extent2D{Width: width, Height: height})
	if err != nil {
		return 0, err
	}

	err = r.record()
	if err != nil {
		return 0, err
	}
	return r.chain.ImageCount(), nil
}

// Destroy tears down in reverse dependency order: command buffers and pool,
// chain members, shader modules, frame slots, vertex buffer. The device
// itself is left to the context.
func (r *VulkanRenderer) Destroy() {
	if r.recorder != nil {
		r.recorder.Destroy()
		r.recorder = nil
	}

	if r.chain != nil {
		r.chain.Destroy()
		r.chain.ReleaseShaders()
		r.chain = nil
	}

	if r.ring != nil {
		r.ring.Destroy()
		r.ring = nil
	}

	if r.vertices != nil {
		r.vertices.Destroy()
		r.vertices = nil
	}
}
