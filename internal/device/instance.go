package device

import (
	"context"
	"log/slog"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
)

var (
	ErrValidationLayerUnavailable = errors.New("validation layer not available")
	ErrMissingExtension           = errors.New("required instance extension not available")
	ErrInstanceCreation           = errors.New("failed to create instance")
)

// VK_KHR_portability_enumeration has no package in the pinned extensions
// module, so its name and create flag are spelled out here.
const portabilityEnumerationName = "VK_KHR_portability_enumeration"

const enumeratePortability core1_0.InstanceCreateFlags = 0x00000001

type InstanceOptions struct {
	ApplicationName string
	// WindowExtensions are the instance extensions the windowing system needs
	// for surface creation.
	WindowExtensions []string

	EnableDiagnostics bool
	ValidationLayers  []string
}

// missing returns the wanted names that are absent from available, sorted.
func missing[V any](available map[string]V, wanted []string) []string {
	var absent []string
	for _, name := range wanted {
		if _, ok := available[name]; !ok {
			absent = append(absent, name)
		}
	}
	sort.Strings(absent)
	return absent
}

func (o InstanceOptions) createInfo(extensions map[string]*core1_0.ExtensionProperties, layers map[string]*core1_0.LayerProperties) (core1_0.InstanceCreateInfo, error) {
	info := core1_0.InstanceCreateInfo{
		ApplicationName:    o.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	if absent := missing(extensions, o.WindowExtensions); len(absent) > 0 {
		return info, errors.Mark(errors.Newf("cannot initialize window surface: missing extensions %v", absent), ErrMissingExtension)
	}
	info.EnabledExtensionNames = append(info.EnabledExtensionNames, o.WindowExtensions...)

	if o.EnableDiagnostics {
		if _, ok := extensions[ext_debug_utils.ExtensionName]; !ok {
			return info, errors.Mark(errors.Newf("diagnostics requested but %s is missing", ext_debug_utils.ExtensionName), ErrMissingExtension)
		}
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext_debug_utils.ExtensionName)

		if absent := missing(layers, o.ValidationLayers); len(absent) > 0 {
			return info, errors.Mark(errors.Newf("cannot add validation layers %v: install the LunarG Vulkan SDK", absent), ErrValidationLayerUnavailable)
		}
		info.EnabledLayerNames = append(info.EnabledLayerNames, o.ValidationLayers...)
	}

	// Needed to enumerate MoltenVK devices.
	if _, ok := extensions[portabilityEnumerationName]; ok {
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, portabilityEnumerationName)
		info.Flags |= enumeratePortability
	}

	return info, nil
}

// severityLevel maps a validation message severity onto a log level.
func severityLevel(severity ext_debug_utils.MessageSeverities) slog.Level {
	switch {
	case severity&ext_debug_utils.SeverityError != 0:
		return slog.LevelError
	case severity&ext_debug_utils.SeverityWarning != 0:
		return slog.LevelWarn
	case severity&ext_debug_utils.SeverityInfo != 0:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func (c *Context) messengerCreateInfo() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    c.logDebug,
	}
}

func (c *Context) logDebug(msgType ext_debug_utils.MessageTypes, severity ext_debug_utils.MessageSeverities, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	c.logger.Log(context.Background(), severityLevel(severity), data.Message,
		slog.Any("type", msgType),
		slog.Any("severity", severity))
	return false
}

// NewContext creates the API instance and, when diagnostics are enabled, the
// validation messenger. The surface and logical device are attached later.
func NewContext(loader core.Loader, opts InstanceOptions, logger *slog.Logger) (*Context, error) {
	c := &Context{logger: orDiscard(logger)}

	extensions, _, err := loader.AvailableExtensions()
	if err != nil {
		return nil, errors.Wrap(err, "list instance extensions")
	}
	c.logger.Info("instance extensions supported", slog.Int("count", len(extensions)))

	layers, _, err := loader.AvailableLayers()
	if err != nil {
		return nil, errors.Wrap(err, "list instance layers")
	}

	info, err := opts.createInfo(extensions, layers)
	if err != nil {
		return nil, err
	}
	if opts.EnableDiagnostics {
		// Chained so that instance creation and destruction are also reported.
		info.Next = c.messengerCreateInfo()
	}

	c.instance, _, err = loader.CreateInstance(nil, info)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create instance"), ErrInstanceCreation)
	}

	if opts.EnableDiagnostics {
		debugLoader := ext_debug_utils.CreateExtensionFromInstance(c.instance)
		c.messenger, _, err = debugLoader.CreateDebugUtilsMessenger(c.instance, nil, c.messengerCreateInfo())
		if err != nil {
			c.Destroy()
			return nil, errors.Wrap(err, "create debug messenger")
		}
	}

	return c, nil
}
