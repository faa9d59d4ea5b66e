// Package swapchain builds the presentation chain: the swapchain, its image
// views, the render pass, the graphics pipeline and one framebuffer per image.
// The chain is rebuilt as a unit whenever the surface goes stale.
package swapchain

import (
	"io"
	"io/fs"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/triangle-loop/internal/mesh"
	"github.com/vkngwrapper/triangle-loop/internal/registry"
	"github.com/vkngwrapper/triangle-loop/internal/shader"
)

var (
	ErrZeroExtent          = errors.New("window has zero area")
	ErrSurfaceQuery        = errors.New("failed to query surface support")
	ErrChainCreation       = errors.New("failed to create swapchain")
	ErrImageViewCreation   = errors.New("failed to create image view")
	ErrRenderPassCreation  = errors.New("failed to create render pass")
	ErrPipelineCreation    = errors.New("failed to create graphics pipeline")
	ErrFramebufferCreation = errors.New("failed to create framebuffer")
)

type Options struct {
	Shaders       fs.FS
	ShaderPaths   shader.Paths
	PreferMailbox bool
}

type SupportDetails struct {
	Capabilities *khr_surface.Capabilities
	Formats      []khr_surface.Format
	PresentModes []khr_surface.PresentMode
}

type Chain struct {
	logger *slog.Logger
	opts   Options

	device         core1_0.Device
	physicalDevice core1_0.PhysicalDevice
	surface        khr_surface.Surface
	indices        registry.QueueFamilyIndices

	shaders *shader.Pair

	extension   khr_swapchain.Extension
	swapchain   khr_swapchain.Swapchain
	images      []core1_0.Image
	imageFormat core1_0.Format
	presentMode khr_surface.PresentMode
	extent      core1_0.Extent2D
	imageViews  *Arena[core1_0.ImageView]

	renderPass     core1_0.RenderPass
	pipelineLayout core1_0.PipelineLayout
	pipeline       core1_0.Pipeline

	framebuffers *Arena[core1_0.Framebuffer]
}

func New(device core1_0.Device, physicalDevice core1_0.PhysicalDevice, surface khr_surface.Surface, indices registry.QueueFamilyIndices, opts Options, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Chain{
		logger:         logger,
		opts:           opts,
		device:         device,
		physicalDevice: physicalDevice,
		surface:        surface,
		indices:        indices,
		imageViews:     NewArena(func(view core1_0.ImageView) { view.Destroy(nil) }),
		framebuffers:   NewArena(func(framebuffer core1_0.Framebuffer) { framebuffer.Destroy(nil) }),
	}
}

func (c *Chain) Extension() khr_swapchain.Extension   { return c.extension }
func (c *Chain) Swapchain() khr_swapchain.Swapchain   { return c.swapchain }
func (c *Chain) ImageCount() int                      { return len(c.images) }
func (c *Chain) ImageViewCount() int                  { return c.imageViews.Len() }
func (c *Chain) Format() core1_0.Format               { return c.imageFormat }
func (c *Chain) Extent() core1_0.Extent2D             { return c.extent }
func (c *Chain) RenderPass() core1_0.RenderPass       { return c.renderPass }
func (c *Chain) Pipeline() core1_0.Pipeline           { return c.pipeline }
func (c *Chain) Framebuffers() []core1_0.Framebuffer  { return c.framebuffers.Items() }
func (c *Chain) FramebufferCount() int                { return c.framebuffers.Len() }
func (c *Chain) PresentMode() khr_surface.PresentMode { return c.presentMode }

// Built reports whether every chain member currently exists.
func (c *Chain) Built() bool {
	return c.swapchain != nil && c.pipeline != nil && c.framebuffers.Len() == len(c.images)
}

func (c *Chain) querySupport() (SupportDetails, error) {
	var details SupportDetails
	var err error

	details.Capabilities, _, err = c.surface.PhysicalDeviceSurfaceCapabilities(c.physicalDevice)
	if err != nil {
		return details, errors.Mark(errors.Wrap(err, "surface capabilities"), ErrSurfaceQuery)
	}

	details.Formats, _, err = c.surface.PhysicalDeviceSurfaceFormats(c.physicalDevice)
	if err != nil {
		return details, errors.Mark(errors.Wrap(err, "surface formats"), ErrSurfaceQuery)
	}

	details.PresentModes, _, err = c.surface.PhysicalDeviceSurfacePresentModes(c.physicalDevice)
	if err != nil {
		return details, errors.Mark(errors.Wrap(err, "present modes"), ErrSurfaceQuery)
	}

	if len(details.Formats) == 0 || len(details.PresentModes) == 0 {
		return details, errors.Mark(errors.New("surface reports no formats or present modes"), ErrSurfaceQuery)
	}
	return details, nil
}

// Build creates every chain member for the given drawable size. A previous
// chain must have been destroyed. On failure whatever was created is
// released again.
func (c *Chain) Build(window core1_0.Extent2D) error {
	if window.Width <= 0 || window.Height <= 0 {
		return errors.Mark(errors.Newf("cannot build for %dx%d", window.Width, window.Height), ErrZeroExtent)
	}
	if c.swapchain != nil {
		return errors.Mark(errors.New("previous swapchain still alive"), ErrChainCreation)
	}

	err := c.build(window)
	if err != nil {
		c.Destroy()
		return err
	}

	c.logger.Info("presentation chain built",
		slog.Any("format", c.imageFormat),
		slog.Any("present_mode", c.presentMode),
		slog.Int("width", c.extent.Width),
		slog.Int("height", c.extent.Height),
		slog.Int("images", len(c.images)))
	return nil
}

func (c *Chain) build(window core1_0.Extent2D) error {
	if c.shaders == nil {
		pair, err := shader.LoadPair(c.device, c.opts.Shaders, c.opts.ShaderPaths)
		if err != nil {
			return err
		}
		c.shaders = pair
	}

	err := c.createSwapchain(window)
	if err != nil {
		return err
	}

	err = c.createImageViews()
	if err != nil {
		return err
	}

	err = c.createRenderPass()
	if err != nil {
		return err
	}

	err = c.createGraphicsPipeline()
	if err != nil {
		return err
	}

	return c.createFramebuffers()
}

// Rebuild destroys the chain and builds it again for the new drawable size.
// The caller must ensure the device is idle.
func (c *Chain) Rebuild(window core1_0.Extent2D) error {
	c.Destroy()
	return c.Build(window)
}

// Destroy releases the chain members in reverse creation order. Shader
// modules survive; see ReleaseShaders.
func (c *Chain) Destroy() {
	c.framebuffers.Destroy()

	if c.pipeline != nil {
		c.pipeline.Destroy(nil)
		c.pipeline = nil
	}

	if c.pipelineLayout != nil {
		c.pipelineLayout.Destroy(nil)
		c.pipelineLayout = nil
	}

	if c.renderPass != nil {
		c.renderPass.Destroy(nil)
		c.renderPass = nil
	}

	c.imageViews.Destroy()

	// Images belong to the swapchain and go away with it.
	c.images = nil
	if c.swapchain != nil {
		c.swapchain.Destroy(nil)
		c.swapchain = nil
	}
}

// ReleaseShaders destroys the shader modules kept across rebuilds.
func (c *Chain) ReleaseShaders() {
	if c.shaders != nil {
		c.shaders.Destroy()
		c.shaders = nil
	}
}

func (c *Chain) createSwapchain(window core1_0.Extent2D) error {
	if c.extension == nil {
		c.extension = khr_swapchain.CreateExtensionFromDevice(c.device)
	}

	swapchainSupport, err := c.querySupport()
	if err != nil {
		return err
	}

	surfaceFormat := ChooseSurfaceFormat(swapchainSupport.Formats)
	presentMode := ChoosePresentMode(swapchainSupport.PresentModes, c.opts.PreferMailbox)
	extent := ChooseExtent(swapchainSupport.Capabilities, window)
	imageCount := ChooseImageCount(swapchainSupport.Capabilities)
	sharingMode, queueFamilyIndices := ChooseSharingMode(c.indices)

	swapchain, _, err := c.extension.CreateSwapchain(c.device, nil, khr_swapchain.SwapchainCreateInfo{
		Surface: c.surface,

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   swapchainSupport.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "%d images of %dx%d", imageCount, extent.Width, extent.Height), ErrChainCreation)
	}
	c.swapchain = swapchain
	c.extent = extent
	c.imageFormat = surfaceFormat.Format
	c.presentMode = presentMode

	// The implementation may hand out more images than requested.
	images, _, err := swapchain.SwapchainImages()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "retrieve swapchain images"), ErrChainCreation)
	}
	c.images = images

	return nil
}

func (c *Chain) createImageViews() error {
	for index, image := range c.images {
		imageView, _, err := c.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   c.imageFormat,
			Components: core1_0.ComponentMapping{
				R: core1_0.ComponentSwizzleIdentity,
				G: core1_0.ComponentSwizzleIdentity,
				B: core1_0.ComponentSwizzleIdentity,
				A: core1_0.ComponentSwizzleIdentity,
			},
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "image %d", index), ErrImageViewCreation)
		}

		c.imageViews.Add(imageView)
	}

	return nil
}

func (c *Chain) createRenderPass() error {
	renderPass, _, err := c.device.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         c.imageFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		// The layout transition at the start of the pass must wait until the
		// presentation engine has finished reading the image.
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return errors.Mark(err, ErrRenderPassCreation)
	}

	c.renderPass = renderPass
	return nil
}

func (c *Chain) createGraphicsPipeline() error {
	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions:   mesh.BindingDescriptions(),
		VertexAttributeDescriptions: mesh.AttributeDescriptions(),
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: c.shaders.Vertex,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: c.shaders.Fragment,
		Name:   "main",
	}

	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{
			{
				X:        0,
				Y:        0,
				Width:    float32(c.extent.Width),
				Height:   float32(c.extent.Height),
				MinDepth: 0,
				MaxDepth: 1,
			},
		},
		Scissors: []core1_0.Rect2D{
			{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: c.extent,
			},
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	// Viewport and line width are set while recording.
	dynamicState := &core1_0.PipelineDynamicStateCreateInfo{
		DynamicStates: []core1_0.DynamicState{
			core1_0.DynamicStateViewport,
			core1_0.DynamicStateLineWidth,
		},
	}

	var err error
	c.pipelineLayout, _, err = c.device.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "pipeline layout"), ErrPipelineCreation)
	}

	pipelines, _, err := c.device.CreateGraphicsPipelines(nil, nil, []core1_0.GraphicsPipelineCreateInfo{
		{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			ColorBlendState:    colorBlend,
			DynamicState:       dynamicState,
			Layout:             c.pipelineLayout,
			RenderPass:         c.renderPass,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	})
	if err != nil {
		return errors.Mark(err, ErrPipelineCreation)
	}
	c.pipeline = pipelines[0]

	return nil
}

func (c *Chain) createFramebuffers() error {
	for index := 0; index < c.imageViews.Len(); index++ {
		framebuffer, _, err := c.device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: c.renderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				c.imageViews.At(index),
			},
			Width:  c.extent.Width,
			Height: c.extent.Height,
		})
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "image %d", index), ErrFramebufferCreation)
		}

		c.framebuffers.Add(framebuffer)
	}

	return nil
}
