package device

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/golang/mock/gomock"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/core/mocks"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_portability_subset"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/triangle-loop/internal/registry"
)

func indices(graphics, present int) registry.QueueFamilyIndices {
	return registry.QueueFamilyIndices{GraphicsFamily: &graphics, PresentFamily: &present}
}

func TestQueueCreateInfosShared(t *testing.T) {
	infos := queueCreateInfos(indices(2, 2))
	if len(infos) != 1 {
		t.Fatalf("got %d queue create infos, want 1", len(infos))
	}
	if infos[0].QueueFamilyIndex != 2 {
		t.Errorf("family = %d, want 2", infos[0].QueueFamilyIndex)
	}
	if len(infos[0].QueuePriorities) != 1 || infos[0].QueuePriorities[0] != 1.0 {
		t.Errorf("priorities = %v, want [1]", infos[0].QueuePriorities)
	}
}

func TestQueueCreateInfosSeparate(t *testing.T) {
	infos := queueCreateInfos(indices(0, 1))
	if len(infos) != 2 {
		t.Fatalf("got %d queue create infos, want 2", len(infos))
	}
	if infos[0].QueueFamilyIndex != 0 || infos[1].QueueFamilyIndex != 1 {
		t.Errorf("families = %d,%d, want 0,1", infos[0].QueueFamilyIndex, infos[1].QueueFamilyIndex)
	}
}

func TestDeviceExtensionNamesAddsPortabilitySubset(t *testing.T) {
	required := []string{"VK_KHR_swapchain"}

	names := deviceExtensionNames(required, map[string]*core1_0.ExtensionProperties{"VK_KHR_swapchain": nil})
	if len(names) != 1 {
		t.Errorf("names = %v, want only the required extension", names)
	}

	names = deviceExtensionNames(required, map[string]*core1_0.ExtensionProperties{
		"VK_KHR_swapchain":                   nil,
		khr_portability_subset.ExtensionName: nil,
	})
	if len(names) != 2 || names[1] != khr_portability_subset.ExtensionName {
		t.Errorf("names = %v, want portability subset appended", names)
	}
	if len(required) != 1 {
		t.Errorf("required slice was modified: %v", required)
	}
}

func TestCreateInfoMissingWindowExtension(t *testing.T) {
	opts := InstanceOptions{WindowExtensions: []string{"VK_KHR_surface", "VK_KHR_xlib_surface"}}
	_, err := opts.createInfo(map[string]*core1_0.ExtensionProperties{"VK_KHR_surface": nil}, nil)
	if !errors.Is(err, ErrMissingExtension) {
		t.Errorf("error = %v, want ErrMissingExtension", err)
	}
}

func TestCreateInfoMissingValidationLayer(t *testing.T) {
	opts := InstanceOptions{
		EnableDiagnostics: true,
		ValidationLayers:  []string{"VK_LAYER_KHRONOS_validation"},
	}
	extensions := map[string]*core1_0.ExtensionProperties{ext_debug_utils.ExtensionName: nil}

	_, err := opts.createInfo(extensions, map[string]*core1_0.LayerProperties{})
	if !errors.Is(err, ErrValidationLayerUnavailable) {
		t.Errorf("error = %v, want ErrValidationLayerUnavailable", err)
	}
}

func TestCreateInfoLayersIgnoredWithoutDiagnostics(t *testing.T) {
	opts := InstanceOptions{ValidationLayers: []string{"VK_LAYER_KHRONOS_validation"}}
	info, err := opts.createInfo(map[string]*core1_0.ExtensionProperties{}, nil)
	if err != nil {
		t.Fatalf("createInfo() error = %v", err)
	}
	if len(info.EnabledLayerNames) != 0 {
		t.Errorf("layers = %v, want none", info.EnabledLayerNames)
	}
}

func TestCreateInfoEnablesPortabilityEnumeration(t *testing.T) {
	opts := InstanceOptions{
		ApplicationName:   "test",
		WindowExtensions:  []string{"VK_KHR_surface"},
		EnableDiagnostics: true,
		ValidationLayers:  []string{"VK_LAYER_KHRONOS_validation"},
	}
	extensions := map[string]*core1_0.ExtensionProperties{
		"VK_KHR_surface":              nil,
		ext_debug_utils.ExtensionName: nil,
		portabilityEnumerationName:    nil,
	}
	layers := map[string]*core1_0.LayerProperties{"VK_LAYER_KHRONOS_validation": nil}

	info, err := opts.createInfo(extensions, layers)
	if err != nil {
		t.Fatalf("createInfo() error = %v", err)
	}
	want := []string{"VK_KHR_surface", ext_debug_utils.ExtensionName, portabilityEnumerationName}
	if len(info.EnabledExtensionNames) != len(want) {
		t.Fatalf("extensions = %v, want %v", info.EnabledExtensionNames, want)
	}
	for i := range want {
		if info.EnabledExtensionNames[i] != want[i] {
			t.Errorf("extensions = %v, want %v", info.EnabledExtensionNames, want)
		}
	}
	if info.Flags&enumeratePortability == 0 {
		t.Error("portability enumeration flag not set")
	}
	if len(info.EnabledLayerNames) != 1 {
		t.Errorf("layers = %v, want validation layer", info.EnabledLayerNames)
	}
}

func TestSeverityLevel(t *testing.T) {
	tests := []struct {
		severity ext_debug_utils.MessageSeverities
		want     slog.Level
	}{
		{ext_debug_utils.SeverityError, slog.LevelError},
		{ext_debug_utils.SeverityWarning, slog.LevelWarn},
		{ext_debug_utils.SeverityInfo, slog.LevelInfo},
		{ext_debug_utils.SeverityVerbose, slog.LevelDebug},
		{ext_debug_utils.SeverityWarning | ext_debug_utils.SeverityError, slog.LevelError},
	}
	for _, tt := range tests {
		if got := severityLevel(tt.severity); got != tt.want {
			t.Errorf("severityLevel(%v) = %v, want %v", tt.severity, got, tt.want)
		}
	}
}

func TestMissingIsSorted(t *testing.T) {
	got := missing(map[string]int{"b": 1}, []string{"z", "b", "a"})
	if len(got) != 2 || got[0] != "a" || got[1] != "z" {
		t.Errorf("missing() = %v, want [a z]", got)
	}
}

func TestCreateDeviceRequiresSurface(t *testing.T) {
	c := &Context{logger: orDiscard(nil)}
	err := c.CreateDevice(nil, indices(0, 0), DeviceOptions{})
	if !errors.Is(err, ErrNoSurface) {
		t.Errorf("error = %v, want ErrNoSurface", err)
	}
}

func TestDestroyEmptyContext(t *testing.T) {
	c := &Context{}
	c.Destroy()
	if err := c.WaitIdle(); err != nil {
		t.Errorf("WaitIdle() on empty context = %v", err)
	}
}

type stubSurface struct {
	khr_surface.Surface
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func expectDevice(ctrl *gomock.Controller) (*mocks.MockPhysicalDevice, *mocks.MockDevice) {
	physicalDevice := mocks.NewMockPhysicalDevice(ctrl)
	device := mocks.NewMockDevice(ctrl)

	physicalDevice.EXPECT().EnumerateDeviceExtensionProperties().
		Return(map[string]*core1_0.ExtensionProperties{}, core1_0.VKSuccess, nil)
	physicalDevice.EXPECT().CreateDevice(gomock.Any(), gomock.Any()).
		Return(device, core1_0.VKSuccess, nil)
	return physicalDevice, device
}

func TestCreateDeviceSharedQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	physicalDevice, device := expectDevice(ctrl)
	queue := mocks.NewMockQueue(ctrl)
	device.EXPECT().GetQueue(1, gomock.Any()).Return(queue).Times(2)

	var logs bytes.Buffer
	c := &Context{logger: bufferLogger(&logs)}
	c.AttachSurface(stubSurface{})

	err := c.CreateDevice(physicalDevice, indices(1, 1), DeviceOptions{Extensions: []string{"VK_KHR_swapchain"}})
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if c.GraphicsQueue() != c.PresentQueue() {
		t.Error("shared family produced two different queues")
	}
	if !strings.Contains(logs.String(), "graphics and present share one queue") {
		t.Errorf("shared queue not reported, logs:\n%s", logs.String())
	}
}

func TestCreateDeviceSeparateQueues(t *testing.T) {
	ctrl := gomock.NewController(t)
	physicalDevice, device := expectDevice(ctrl)
	graphics := mocks.NewMockQueue(ctrl)
	present := mocks.NewMockQueue(ctrl)
	device.EXPECT().GetQueue(0, gomock.Any()).Return(graphics)
	device.EXPECT().GetQueue(2, gomock.Any()).Return(present)

	var logs bytes.Buffer
	c := &Context{logger: bufferLogger(&logs)}
	c.AttachSurface(stubSurface{})

	err := c.CreateDevice(physicalDevice, indices(0, 2), DeviceOptions{})
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if c.GraphicsQueue() != graphics || c.PresentQueue() != present {
		t.Error("queues not taken from their own families")
	}
	if strings.Contains(logs.String(), "share one queue") {
		t.Error("separate families reported as a shared queue")
	}
}

func TestCreateDeviceQueueRetrieval(t *testing.T) {
	tests := []struct {
		name     string
		graphics bool
	}{
		{name: "graphics queue missing"},
		{name: "present queue missing", graphics: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			physicalDevice, device := expectDevice(ctrl)

			if !tc.graphics {
				device.EXPECT().GetQueue(0, gomock.Any()).Return(nil)
			} else {
				device.EXPECT().GetQueue(0, gomock.Any()).Return(mocks.NewMockQueue(ctrl))
				device.EXPECT().GetQueue(1, gomock.Any()).Return(nil)
			}

			c := &Context{logger: orDiscard(nil)}
			c.AttachSurface(stubSurface{})

			err := c.CreateDevice(physicalDevice, indices(0, 1), DeviceOptions{})
			if !errors.Is(err, ErrQueueRetrieval) {
				t.Errorf("error = %v, want ErrQueueRetrieval", err)
			}
		})
	}
}

func TestCreateDeviceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	physicalDevice := mocks.NewMockPhysicalDevice(ctrl)
	physicalDevice.EXPECT().EnumerateDeviceExtensionProperties().
		Return(map[string]*core1_0.ExtensionProperties{}, core1_0.VKSuccess, nil)
	physicalDevice.EXPECT().CreateDevice(gomock.Any(), gomock.Any()).
		Return(nil, common.VkResult(-3), errors.New("initialization failed"))

	c := &Context{logger: orDiscard(nil)}
	c.AttachSurface(stubSurface{})

	err := c.CreateDevice(physicalDevice, indices(0, 0), DeviceOptions{})
	if !errors.Is(err, ErrDeviceCreation) {
		t.Errorf("error = %v, want ErrDeviceCreation", err)
	}
	if c.Device() != nil {
		t.Error("context kept a device after failed creation")
	}
}
