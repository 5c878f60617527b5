// Package gpu owns the connection to the Vulkan driver: the instance, the
// optional validation messenger, the window surface, the selected physical
// device and the logical device with its graphics, present and transfer
// queues.
package gpu

import (
	"context"

	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/khr_portability_subset"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
	"github.com/vkngwrapper/vklab/internal/logging"
	"golang.org/x/exp/slog"
)

// SurfaceProvider is the part of the window the context needs.
type SurfaceProvider interface {
	InstanceExtensions() []string
	CreateSurface(instance core1_0.Instance) (khr_surface.Surface, error)
}

type Options struct {
	ApplicationName  string
	Validation       bool
	ValidationLayers []string
	DeviceExtensions []string

	// SamplerAnisotropy is required of the device and enabled on it when a
	// texture is sampled.
	SamplerAnisotropy bool

	Logger *slog.Logger
}

type Context struct {
	options Options
	logger  *slog.Logger

	loader         core.Loader
	instance       core1_0.Instance
	debugMessenger ext_debug_utils.DebugUtilsMessenger
	surface        khr_surface.Surface

	physicalDevice core1_0.PhysicalDevice
	device         core1_0.Device
	indices        QueueFamilyIndices

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue
	transferQueue core1_0.Queue
}

// New connects to the driver and opens the first suitable device. Anything
// created before a failure is released before New returns.
func New(loader core.Loader, window SurfaceProvider, options Options) (*Context, error) {
	ctx := &Context{
		options: options,
		logger:  logging.OrDiscard(options.Logger),
		loader:  loader,
	}

	err := ctx.initialize(window)
	if err != nil {
		ctx.Cleanup()
		return nil, err
	}

	return ctx, nil
}

func (c *Context) initialize(window SurfaceProvider) error {
	err := c.createInstance(window.InstanceExtensions())
	if err != nil {
		return err
	}

	err = c.setupDebugMessenger()
	if err != nil {
		return err
	}

	c.surface, err = window.CreateSurface(c.instance)
	if err != nil {
		return err
	}

	err = c.pickPhysicalDevice()
	if err != nil {
		return err
	}

	return c.createLogicalDevice()
}

func (c *Context) createInstance(windowExtensions []string) error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    c.options.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := c.loader.AvailableExtensions()
	if err != nil {
		return gfxerr.Wrap(err, gfxerr.ErrMissingExtension, "enumerate instance extensions")
	}

	if missing := missingNames(extensions, windowExtensions); len(missing) > 0 {
		return gfxerr.New(gfxerr.ErrMissingExtension, "createInstance: cannot initialize window: missing extensions %v", missing)
	}
	instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, windowExtensions...)

	if c.options.Validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if c.options.Validation {
		layers, _, err := c.loader.AvailableLayers()
		if err != nil {
			return gfxerr.Wrap(err, gfxerr.ErrMissingLayer, "enumerate instance layers")
		}

		if missing := missingNames(layers, c.options.ValidationLayers); len(missing) > 0 {
			return gfxerr.New(gfxerr.ErrMissingLayer, "createInstance: validation layers %v not available- install LunarG Vulkan SDK", missing)
		}
		instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, c.options.ValidationLayers...)

		// Capture messages emitted while the instance itself is created.
		instanceOptions.Next = c.debugMessengerOptions()
	}

	c.instance, _, err = c.loader.CreateInstance(nil, instanceOptions)
	if err != nil {
		return gfxerr.Wrap(err, gfxerr.ErrDeviceCreation, "createInstance")
	}

	return nil
}

func (c *Context) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    c.logDebug,
	}
}

func (c *Context) setupDebugMessenger() error {
	if !c.options.Validation {
		return nil
	}

	var err error
	debugLoader := ext_debug_utils.CreateExtensionFromInstance(c.instance)
	c.debugMessenger, _, err = debugLoader.CreateDebugUtilsMessenger(c.instance, nil, c.debugMessengerOptions())
	if err != nil {
		return gfxerr.Wrap(err, gfxerr.ErrMissingExtension, "setupDebugMessenger")
	}

	return nil
}

func (c *Context) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelWarn
	if (severity & ext_debug_utils.SeverityError) != 0 {
		level = slog.LevelError
	}

	c.logger.Log(context.Background(), level, data.Message, "type", msgType, "severity", severity)
	return false
}

func (c *Context) pickPhysicalDevice() error {
	physicalDevices, _, err := c.instance.EnumeratePhysicalDevices()
	if err != nil {
		return gfxerr.Wrap(err, gfxerr.ErrNoGPU, "enumerate physical devices")
	}

	if len(physicalDevices) == 0 {
		return gfxerr.New(gfxerr.ErrNoGPU, "pickPhysicalDevice: %d devices enumerated", 0)
	}

	device, index, found := selectFirst(physicalDevices, c.isDeviceSuitable)
	if !found {
		return gfxerr.New(gfxerr.ErrDeviceNotFound, "pickPhysicalDevice: none of %d devices is suitable", len(physicalDevices))
	}

	c.physicalDevice = device
	c.indices, err = c.findQueueFamilies(device)
	if err != nil {
		return gfxerr.Wrap(err, gfxerr.ErrDeviceNotFound, "findQueueFamilies")
	}

	attrs := []any{
		"index", index,
		"graphicsFamily", *c.indices.GraphicsFamily,
		"presentFamily", *c.indices.PresentFamily,
		"transferFamily", *c.indices.TransferFamily,
	}
	if properties, err := device.Properties(); err == nil {
		attrs = append(attrs, "name", properties.DriverName)
	}
	c.logger.Info("selected physical device", attrs...)

	return nil
}

func (c *Context) isDeviceSuitable(device core1_0.PhysicalDevice) bool {
	indices, err := c.findQueueFamilies(device)
	if err != nil {
		c.logger.Debug("queue family query failed", "error", err)
		return false
	}

	extensionsSupported := c.checkDeviceExtensionSupport(device)

	var swapChainAdequate bool
	if extensionsSupported {
		swapChainSupport, err := c.querySwapchainSupport(device)
		if err != nil {
			c.logger.Debug("swapchain support query failed", "error", err)
			return false
		}

		swapChainAdequate = swapChainSupport.Adequate()
	}

	featuresSupported := true
	if c.options.SamplerAnisotropy {
		featuresSupported = device.Features().SamplerAnisotropy
	}

	return indices.IsComplete() && extensionsSupported && swapChainAdequate && featuresSupported
}

func (c *Context) checkDeviceExtensionSupport(device core1_0.PhysicalDevice) bool {
	extensions, _, err := device.EnumerateDeviceExtensionProperties()
	if err != nil {
		return false
	}

	return len(missingNames(extensions, c.options.DeviceExtensions)) == 0
}

func (c *Context) findQueueFamilies(device core1_0.PhysicalDevice) (QueueFamilyIndices, error) {
	var flags []core1_0.QueueFlags
	for _, queueFamily := range device.QueueFamilyProperties() {
		flags = append(flags, queueFamily.QueueFlags)
	}

	return findQueueFamilies(flags, func(familyIndex int) (bool, error) {
		supported, _, err := c.surface.PhysicalDeviceSurfaceSupport(device, familyIndex)
		return supported, err
	})
}

func (c *Context) querySwapchainSupport(device core1_0.PhysicalDevice) (SwapchainSupportDetails, error) {
	var details SwapchainSupportDetails
	var err error

	details.Capabilities, _, err = c.surface.PhysicalDeviceSurfaceCapabilities(device)
	if err != nil {
		return details, err
	}

	details.Formats, _, err = c.surface.PhysicalDeviceSurfaceFormats(device)
	if err != nil {
		return details, err
	}

	details.PresentModes, _, err = c.surface.PhysicalDeviceSurfacePresentModes(device)
	return details, err
}

func (c *Context) createLogicalDevice() error {
	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range c.indices.Unique() {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, c.options.DeviceExtensions...)

	// Required by the portability spec on MoltenVK and similar layered drivers.
	extensions, _, err := c.physicalDevice.EnumerateDeviceExtensionProperties()
	if err != nil {
		return gfxerr.Wrap(err, gfxerr.ErrDeviceCreation, "enumerate device extensions")
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	var res common.VkResult
	c.device, res, err = c.physicalDevice.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueFamilyOptions,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: c.options.SamplerAnisotropy,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return gfxerr.Result(res, err, gfxerr.ErrDeviceCreation, "createLogicalDevice")
	}

	c.graphicsQueue = c.device.GetQueue(*c.indices.GraphicsFamily, 0)
	c.presentQueue = c.device.GetQueue(*c.indices.PresentFamily, 0)
	c.transferQueue = c.device.GetQueue(*c.indices.TransferFamily, 0)
	return nil
}

func (c *Context) Device() core1_0.Device            { return c.device }
func (c *Context) Surface() khr_surface.Surface      { return c.surface }
func (c *Context) GraphicsQueue() core1_0.Queue      { return c.graphicsQueue }
func (c *Context) PresentQueue() core1_0.Queue       { return c.presentQueue }
func (c *Context) TransferQueue() core1_0.Queue      { return c.transferQueue }
func (c *Context) QueueFamilies() QueueFamilyIndices { return c.indices }

// SwapchainSupport re-queries the surface; capabilities change with the
// window size.
func (c *Context) SwapchainSupport() (SwapchainSupportDetails, error) {
	return c.querySwapchainSupport(c.physicalDevice)
}

func (c *Context) FindMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	var types []core1_0.MemoryPropertyFlags
	for _, memoryType := range c.physicalDevice.MemoryProperties().MemoryTypes {
		types = append(types, memoryType.PropertyFlags)
	}

	index, found := findMemoryType(types, typeFilter, properties)
	if !found {
		return 0, gfxerr.New(gfxerr.ErrOutOfMemory, "failed to find any suitable memory type for %s", properties)
	}
	return index, nil
}

// MaxSamplerAnisotropy is the device limit used when creating samplers.
func (c *Context) MaxSamplerAnisotropy() (float32, error) {
	properties, err := c.physicalDevice.Properties()
	if err != nil {
		return 0, err
	}
	return properties.Limits.MaxSamplerAnisotropy, nil
}

// WaitIdle drains every queue on the device.
func (c *Context) WaitIdle() error {
	if c.device == nil {
		return nil
	}
	_, err := c.device.WaitIdle()
	return err
}

// Cleanup releases the device, messenger, surface and instance in reverse
// creation order. It may be called any number of times.
func (c *Context) Cleanup() {
	if c.device != nil {
		c.device.Destroy(nil)
		c.device = nil
	}
	c.graphicsQueue = nil
	c.presentQueue = nil
	c.transferQueue = nil

	if c.debugMessenger != nil {
		c.debugMessenger.Destroy(nil)
		c.debugMessenger = nil
	}

	if c.surface != nil {
		c.surface.Destroy(nil)
		c.surface = nil
	}

	if c.instance != nil {
		c.instance.Destroy(nil)
		c.instance = nil
	}
}

// CreateImageView creates a single-level 2D view over image.
func CreateImageView(device core1_0.Device, image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (core1_0.ImageView, error) {
	imageView, res, err := device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "createImageView")
	}
	return imageView, nil
}
