// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/devblok/overlaygfx/gfx"
)

// CreateRenderPass implements gfx.Device
func (d *Device) CreateRenderPass(desc gfx.RenderPassDesc) (gfx.RenderPass, error) {
	attachments := []vk.AttachmentDescription{{
		Format:         Format(desc.Format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  Layout(desc.InitialLayout),
		FinalLayout:    Layout(desc.FinalLayout),
	}}

	colorAttachmentRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}

	subpassDependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorAttachmentRef)),
		PColorAttachments:    colorAttachmentRef,
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{subpassDependency},
	}

	var renderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(d.device, &rpci, nil, &renderPass)); err != nil {
		return nil, errors.New("vk.CreateRenderPass(): " + err.Error())
	}
	return &RenderPass{
		device:     d.device,
		renderPass: renderPass,
		desc:       desc,
	}, nil
}

// RenderPass implements gfx.RenderPass
type RenderPass struct {
	device     vk.Device
	renderPass vk.RenderPass
	desc       gfx.RenderPassDesc
}

// Desc implements gfx.RenderPass
func (r *RenderPass) Desc() gfx.RenderPassDesc {
	return r.desc
}

// Release implements gfx.Releasable
func (r *RenderPass) Release() {
	vk.DestroyRenderPass(r.device, r.renderPass, nil)
}

func (d *Device) createSetLayouts(shaders gfx.ShaderPair) ([]vk.DescriptorSetLayout, error) {
	layouts := make([]vk.DescriptorSetLayout, shaders.Sets())
	for set := range layouts {
		var bindings []vk.DescriptorSetLayoutBinding
		for _, b := range shaders.Bindings {
			if b.Set != uint32(set) {
				continue
			}
			bindings = append(bindings, vk.DescriptorSetLayoutBinding{
				Binding:         b.Binding,
				DescriptorType:  descriptorType(b.Type),
				DescriptorCount: 1,
				StageFlags:      shaderStages(b.Stages),
			})
		}

		dslci := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(bindings)),
			PBindings:    bindings,
		}
		if err := vk.Error(vk.CreateDescriptorSetLayout(d.device, &dslci, nil, &layouts[set])); err != nil {
			for _, created := range layouts[:set] {
				vk.DestroyDescriptorSetLayout(d.device, created, nil)
			}
			return nil, errors.New("vk.CreateDescriptorSetLayout(): " + err.Error())
		}
	}
	return layouts, nil
}

// CreatePipeline implements gfx.Device. The pipeline blends with source alpha,
// its viewport is dynamic and its scissor covers desc.Extent.
func (d *Device) CreatePipeline(desc gfx.PipelineDesc) (gfx.Pipeline, error) {
	renderPass, ok := desc.RenderPass.(*RenderPass)
	if !ok {
		return nil, errors.Errorf("vkr: foreign render pass %T", desc.RenderPass)
	}

	vertex, err := d.createShaderModule(desc.Shaders.Name+".vert", desc.Shaders.Vertex)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(d.device, vertex, nil)
	fragment, err := d.createShaderModule(desc.Shaders.Name+".frag", desc.Shaders.Fragment)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(d.device, fragment, nil)

	setLayouts, err := d.createSetLayouts(desc.Shaders)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		device:     d.device,
		setLayouts: setLayouts,
		shaders:    desc.Shaders,
	}

	plci := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	if err := vk.Error(vk.CreatePipelineLayout(d.device, &plci, nil, &p.layout)); err != nil {
		p.Release()
		return nil, errors.New("vk.CreatePipelineLayout(): " + err.Error())
	}

	attributes := make([]vk.VertexInputAttributeDescription, len(desc.Vertex.Attributes))
	for idx, attr := range desc.Vertex.Attributes {
		attributes[idx] = vk.VertexInputAttributeDescription{
			Location: attr.Location,
			Binding:  0,
			Format:   Format(attr.Format),
			Offset:   attr.Offset,
		}
	}

	stages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: vertex,
		PName:  "main\x00",
	}, {
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFragmentBit,
		Module: fragment,
		PName:  "main\x00",
	}}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount: 1,
			PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
				Binding:   0,
				Stride:    desc.Vertex.Stride,
				InputRate: vk.VertexInputRateVertex,
			}},
			VertexAttributeDescriptionCount: uint32(len(attributes)),
			PVertexAttributeDescriptions:    attributes,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
			PScissors: []vk.Rect2D{{
				Extent: vk.Extent2D{
					Width:  desc.Extent.Width,
					Height: desc.Extent.Height,
				},
			}},
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceCounterClockwise,
			LineWidth:   1.0,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				BlendEnable:         vk.True,
				SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
				DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
				ColorBlendOp:        vk.BlendOpAdd,
				SrcAlphaBlendFactor: vk.BlendFactorOne,
				DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
				AlphaBlendOp:        vk.BlendOpAdd,
				ColorWriteMask:      0xF,
			}},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 1,
			PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport},
		},
		Layout:     p.layout,
		RenderPass: renderPass.renderPass,
	}}

	pipelines := make([]vk.Pipeline, len(gpci))
	if err := vk.Error(vk.CreateGraphicsPipelines(d.device, d.pipelineCache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		p.Release()
		return nil, errors.New("vk.CreateGraphicsPipelines(): " + err.Error())
	}
	p.pipeline = pipelines[0]
	return p, nil
}

// Pipeline implements gfx.Pipeline
type Pipeline struct {
	device     vk.Device
	pipeline   vk.Pipeline
	layout     vk.PipelineLayout
	setLayouts []vk.DescriptorSetLayout
	shaders    gfx.ShaderPair
}

func (p *Pipeline) declares(set, binding uint32, kind gfx.DescriptorType) bool {
	for _, b := range p.shaders.Bindings {
		if b.Set == set && b.Binding == binding && b.Type == kind {
			return true
		}
	}
	return false
}

// Release implements gfx.Releasable
func (p *Pipeline) Release() {
	if p.pipeline != nil {
		vk.DestroyPipeline(p.device, p.pipeline, nil)
	}
	if p.layout != nil {
		vk.DestroyPipelineLayout(p.device, p.layout, nil)
	}
	for _, layout := range p.setLayouts {
		vk.DestroyDescriptorSetLayout(p.device, layout, nil)
	}
}

// CreateFramebuffer implements gfx.Device
func (d *Device) CreateFramebuffer(rp gfx.RenderPass, view gfx.ImageView) (gfx.Framebuffer, error) {
	renderPass, ok := rp.(*RenderPass)
	if !ok {
		return nil, errors.Errorf("vkr: foreign render pass %T", rp)
	}
	imageView, ok := view.(*ImageView)
	if !ok {
		return nil, errors.Errorf("vkr: foreign image view %T", view)
	}
	extent := imageView.image.info.Extent

	fbci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass.renderPass,
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{imageView.view},
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if err := vk.Error(vk.CreateFramebuffer(d.device, &fbci, nil, &framebuffer)); err != nil {
		return nil, errors.New("vk.CreateFramebuffer(): " + err.Error())
	}
	return &Framebuffer{
		device:      d.device,
		framebuffer: framebuffer,
		extent:      extent,
	}, nil
}

// Framebuffer implements gfx.Framebuffer
type Framebuffer struct {
	device      vk.Device
	framebuffer vk.Framebuffer
	extent      gfx.Extent2D
}

// Extent implements gfx.Framebuffer
func (f *Framebuffer) Extent() gfx.Extent2D {
	return f.extent
}

// Release implements gfx.Releasable
func (f *Framebuffer) Release() {
	vk.DestroyFramebuffer(f.device, f.framebuffer, nil)
}
