package vkr

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/devblok/overlaygfx/gfx"
)

// maxDescriptorSets bounds the sets alive at once
const maxDescriptorSets = 256

func createDescriptorPool(dev vk.Device) (vk.DescriptorPool, error) {
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxDescriptorSets,
		PoolSizeCount: 2,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: maxDescriptorSets,
		}, {
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: maxDescriptorSets,
		}},
	}

	var pool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(dev, &dpci, nil, &pool)); err != nil {
		return nil, errors.New("vk.CreateDescriptorPool(): " + err.Error())
	}
	return pool, nil
}

// CreateDescriptorSet implements gfx.Device
func (d *Device) CreateDescriptorSet(p gfx.Pipeline, set uint32, writes ...gfx.DescriptorWrite) (gfx.DescriptorSet, error) {
	pipeline, ok := p.(*Pipeline)
	if !ok {
		return nil, errors.Errorf("vkr: foreign pipeline %T", p)
	}
	if int(set) >= len(pipeline.setLayouts) {
		return nil, errors.Errorf("vkr: pipeline %s has no set %d", pipeline.shaders.Name, set)
	}

	descriptorWrites := make([]vk.WriteDescriptorSet, len(writes))
	for idx, w := range writes {
		if !pipeline.declares(set, w.Binding, w.Type) {
			return nil, errors.Errorf("vkr: pipeline %s does not declare binding %d of set %d", pipeline.shaders.Name, w.Binding, set)
		}
		descriptorWrites[idx] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstBinding:      w.Binding,
			DescriptorCount: 1,
			DescriptorType:  descriptorType(w.Type),
		}

		switch w.Type {
		case gfx.DescriptorCombinedImageSampler:
			view, ok := w.View.(*ImageView)
			if !ok {
				return nil, errors.Errorf("vkr: foreign image view %T", w.View)
			}
			sampler, ok := w.Sampler.(*Sampler)
			if !ok {
				return nil, errors.Errorf("vkr: foreign sampler %T", w.Sampler)
			}
			descriptorWrites[idx].PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     sampler.sampler,
				ImageView:   view.view,
				ImageLayout: Layout(w.Layout),
			}}
		case gfx.DescriptorUniformBuffer:
			buffer, ok := w.Buffer.(*Buffer)
			if !ok {
				return nil, errors.Errorf("vkr: foreign buffer %T", w.Buffer)
			}
			descriptorWrites[idx].PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: buffer.buffer,
				Range:  vk.DeviceSize(buffer.size),
			}}
		}
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{pipeline.setLayouts[set]},
	}
	var descriptorSet vk.DescriptorSet
	if err := vk.Error(vk.AllocateDescriptorSets(d.device, &allocInfo, &descriptorSet)); err != nil {
		return nil, errors.New("vk.AllocateDescriptorSets(): " + err.Error())
	}

	for idx := range descriptorWrites {
		descriptorWrites[idx].DstSet = descriptorSet
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(descriptorWrites)), descriptorWrites, 0, nil)

	return &DescriptorSet{
		device: d,
		set:    descriptorSet,
	}, nil
}

// DescriptorSet implements gfx.DescriptorSet
type DescriptorSet struct {
	device *Device
	set    vk.DescriptorSet
}

// Release implements gfx.Releasable
func (s *DescriptorSet) Release() {
	s.device.mutex.Lock()
	defer s.device.mutex.Unlock()
	vk.FreeDescriptorSets(s.device.device, s.device.descriptorPool, 1, &s.set)
}
