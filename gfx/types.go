package gfx

import "fmt"

// Extent2D is a size in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Format is a pixel or vertex attribute format.
type Format int

// Supported formats
const (
	FormatUndefined Format = iota
	FormatR8G8B8A8Unorm
	FormatB8G8R8A8Unorm
	FormatR8G8B8A8Srgb
	FormatB8G8R8A8Srgb
	FormatR32G32Sfloat
)

var formatNames = map[Format]string{
	FormatUndefined:     "Undefined",
	FormatR8G8B8A8Unorm: "R8G8B8A8Unorm",
	FormatB8G8R8A8Unorm: "B8G8R8A8Unorm",
	FormatR8G8B8A8Srgb:  "R8G8B8A8Srgb",
	FormatB8G8R8A8Srgb:  "B8G8R8A8Srgb",
	FormatR32G32Sfloat:  "R32G32Sfloat",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Size returns the number of bytes one element of the format occupies.
func (f Format) Size() int {
	switch f {
	case FormatR8G8B8A8Unorm, FormatB8G8R8A8Unorm, FormatR8G8B8A8Srgb, FormatB8G8R8A8Srgb:
		return 4
	case FormatR32G32Sfloat:
		return 8
	}
	return 0
}

// ImageLayout is the access-optimized arrangement of an image's pixels.
type ImageLayout int

// Image layouts
const (
	LayoutUndefined ImageLayout = iota
	LayoutGeneral
	LayoutColorAttachmentOptimal
	LayoutShaderReadOnlyOptimal
	LayoutTransferSrcOptimal
	LayoutTransferDstOptimal
	LayoutPresentSrc
)

var layoutNames = [...]string{
	"Undefined",
	"General",
	"ColorAttachmentOptimal",
	"ShaderReadOnlyOptimal",
	"TransferSrcOptimal",
	"TransferDstOptimal",
	"PresentSrc",
}

func (l ImageLayout) String() string {
	if l >= 0 && int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("ImageLayout(%d)", int(l))
}

// BufferUsage flags
type BufferUsage uint32

// Buffer usages
const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniform
	BufferUsageIndex
	BufferUsageVertex
)

// ImageUsage flags
type ImageUsage uint32

// Image usages
const (
	ImageUsageTransferSrc ImageUsage = 1 << iota
	ImageUsageTransferDst
	ImageUsageSampled
	ImageUsageColorAttachment
)

// MemoryPreference selects where allocations should live. Both kinds stay
// host-visible so uploads are synchronous.
type MemoryPreference int

// Memory preferences
const (
	MemoryPreferHost MemoryPreference = iota
	MemoryPreferDevice
)

// Filter is a texel filter.
type Filter int

// Filters
const (
	FilterNearest Filter = iota
	FilterLinear
)

// CommandBufferLevel is either primary or secondary.
type CommandBufferLevel int

// Command buffer levels
const (
	LevelPrimary CommandBufferLevel = iota
	LevelSecondary
)

// CommandBufferUsage hints how often a recording is submitted.
type CommandBufferUsage int

// Command buffer usages
const (
	UsageOneTimeSubmit CommandBufferUsage = iota
	UsageMultipleSubmit
	UsageSimultaneousUse
)

// DescriptorType is the kind of resource bound to a descriptor.
type DescriptorType int

// Descriptor types
const (
	DescriptorCombinedImageSampler DescriptorType = iota
	DescriptorUniformBuffer
)

// ShaderStage flags
type ShaderStage uint32

// Shader stages
const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
)

// Access is the kind of memory access a barrier orders.
type Access int

// Accesses
const (
	AccessNone Access = iota
	AccessTransferRead
	AccessTransferWrite
	AccessShaderRead
	AccessColorAttachmentWrite
)

// ImageBarrier transitions Image from OldLayout to NewLayout, making
// Src accesses visible to Dst accesses.
type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	Src       Access
	Dst       Access
}

// RenderPassDesc describes a render pass with one color attachment,
// cleared on load and stored on end.
type RenderPassDesc struct {
	Format        Format
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

// DescriptorBinding is one binding of a shader's interface.
type DescriptorBinding struct {
	Set     uint32
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
}

// ShaderPair is a compiled vertex and fragment shader, both with a main
// entry point, along with the descriptor bindings they use.
type ShaderPair struct {
	Name     string
	Vertex   []byte
	Fragment []byte
	Bindings []DescriptorBinding
}

// Sets returns the number of descriptor sets the shaders use.
func (s ShaderPair) Sets() uint32 {
	var n uint32
	for _, b := range s.Bindings {
		if b.Set+1 > n {
			n = b.Set + 1
		}
	}
	return n
}

// VertexAttribute is one attribute of a vertex.
type VertexAttribute struct {
	Location uint32
	Offset   uint32
	Format   Format
}

// VertexLayout describes the vertices of binding zero.
type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

// PipelineDesc describes a textured, alpha blended pipeline drawing
// into the single color attachment of RenderPass.
type PipelineDesc struct {
	RenderPass RenderPass
	Shaders    ShaderPair
	Vertex     VertexLayout
	Extent     Extent2D
}

// SamplerDesc describes a sampler. Addressing repeats on all axes.
type SamplerDesc struct {
	MagFilter Filter
	MinFilter Filter
}

// DescriptorWrite fills one binding of a descriptor set. Samplers use
// View, Layout and Sampler, uniform buffers use Buffer.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	View    ImageView
	Layout  ImageLayout
	Sampler Sampler
	Buffer  Buffer
}
