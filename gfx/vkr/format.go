package vkr

import (
	"strings"

	vk "github.com/goki/vulkan"

	"github.com/devblok/overlaygfx/device"
	"github.com/devblok/overlaygfx/gfx"
)

var formats = map[gfx.Format]vk.Format{
	gfx.FormatUndefined:     vk.FormatUndefined,
	gfx.FormatR8G8B8A8Unorm: vk.FormatR8g8b8a8Unorm,
	gfx.FormatB8G8R8A8Unorm: vk.FormatB8g8r8a8Unorm,
	gfx.FormatR8G8B8A8Srgb:  vk.FormatR8g8b8a8Srgb,
	gfx.FormatB8G8R8A8Srgb:  vk.FormatB8g8r8a8Srgb,
	gfx.FormatR32G32Sfloat:  vk.FormatR32g32Sfloat,
}

// Format converts a gfx format to its Vulkan equivalent
func Format(f gfx.Format) vk.Format {
	if vf, ok := formats[f]; ok {
		return vf
	}
	return vk.FormatUndefined
}

// FromFormat converts a Vulkan format, ok is false when
// the format has no gfx equivalent
func FromFormat(vf vk.Format) (gfx.Format, bool) {
	for f, candidate := range formats {
		if candidate == vf && f != gfx.FormatUndefined {
			return f, true
		}
	}
	return gfx.FormatUndefined, false
}

// Layout converts an image layout
func Layout(l gfx.ImageLayout) vk.ImageLayout {
	switch l {
	case gfx.LayoutGeneral:
		return vk.ImageLayoutGeneral
	case gfx.LayoutColorAttachmentOptimal:
		return vk.ImageLayoutColorAttachmentOptimal
	case gfx.LayoutShaderReadOnlyOptimal:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case gfx.LayoutTransferSrcOptimal:
		return vk.ImageLayoutTransferSrcOptimal
	case gfx.LayoutTransferDstOptimal:
		return vk.ImageLayoutTransferDstOptimal
	case gfx.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

// access returns the access mask and the pipeline stage it happens in
func access(a gfx.Access) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch a {
	case gfx.AccessTransferRead:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case gfx.AccessTransferWrite:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case gfx.AccessShaderRead:
		return vk.AccessFlags(vk.AccessShaderReadBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case gfx.AccessColorAttachmentWrite:
		return vk.AccessFlags(vk.AccessColorAttachmentWriteBit), vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	}
	return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
}

func bufferUsage(u gfx.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&gfx.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if u&gfx.BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	if u&gfx.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if u&gfx.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if u&gfx.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

func imageUsage(u gfx.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&gfx.ImageUsageTransferSrc != 0 {
		flags |= vk.ImageUsageTransferSrcBit
	}
	if u&gfx.ImageUsageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	if u&gfx.ImageUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if u&gfx.ImageUsageColorAttachment != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	return vk.ImageUsageFlags(flags)
}

func shaderStages(s gfx.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if s&gfx.StageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&gfx.StageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(flags)
}

func descriptorType(t gfx.DescriptorType) vk.DescriptorType {
	if t == gfx.DescriptorUniformBuffer {
		return vk.DescriptorTypeUniformBuffer
	}
	return vk.DescriptorTypeCombinedImageSampler
}

func filter(f gfx.Filter) vk.Filter {
	if f == gfx.FilterLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func commandUsage(u gfx.CommandBufferUsage) vk.CommandBufferUsageFlags {
	switch u {
	case gfx.UsageOneTimeSubmit:
		return vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	case gfx.UsageSimultaneousUse:
		return vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}
	return 0
}

// DeviceType converts the class of a physical device
func DeviceType(t vk.PhysicalDeviceType) device.Type {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return device.TypeDiscrete
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return device.TypeIntegrated
	case vk.PhysicalDeviceTypeVirtualGpu:
		return device.TypeVirtual
	case vk.PhysicalDeviceTypeCpu:
		return device.TypeCPU
	}
	return device.TypeOther
}

// cstrings terminates every string with NUL, the way the driver expects names
func cstrings(list []string) []string {
	terminated := make([]string, len(list))
	for idx, s := range list {
		terminated[idx] = strings.TrimRight(s, "\x00") + "\x00"
	}
	return terminated
}
