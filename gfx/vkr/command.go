// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"time"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/devblok/overlaygfx/gfx"
)

func createCommandPool(dev vk.Device, queueFamily uint32) (vk.CommandPool, error) {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: queueFamily,
	}

	var pool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(dev, &cpci, nil, &pool)); err != nil {
		return nil, errors.New("vk.CreateCommandPool(): " + err.Error())
	}
	return pool, nil
}

// Record implements gfx.Device. Recording is not safe for concurrent use,
// allocation from the pool is.
func (d *Device) Record(level gfx.CommandBufferLevel, usage gfx.CommandBufferUsage, inherit gfx.RenderPass) (gfx.Recorder, error) {
	vkLevel := vk.CommandBufferLevelPrimary
	if level == gfx.LevelSecondary {
		vkLevel = vk.CommandBufferLevelSecondary
	}

	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vkLevel,
		CommandBufferCount: 1,
	}
	commandBuffers := make([]vk.CommandBuffer, 1)
	d.mutex.Lock()
	err := vk.Error(vk.AllocateCommandBuffers(d.device, &cbai, commandBuffers))
	d.mutex.Unlock()
	if err != nil {
		return nil, errors.New("vk.AllocateCommandBuffers(): " + err.Error())
	}

	cmd := &CommandBuffer{
		device: d,
		cmd:    commandBuffers[0],
		level:  level,
		usage:  usage,
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: commandUsage(usage),
	}
	if level == gfx.LevelSecondary {
		renderPass, ok := inherit.(*RenderPass)
		if !ok {
			cmd.Release()
			return nil, errors.Errorf("vkr: secondary recording needs a render pass, got %T", inherit)
		}
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
		beginInfo.PInheritanceInfo = []vk.CommandBufferInheritanceInfo{{
			SType:      vk.StructureTypeCommandBufferInheritanceInfo,
			RenderPass: renderPass.renderPass,
			Subpass:    0,
		}}
	} else if inherit != nil {
		cmd.Release()
		return nil, errors.New("vkr: primary recordings do not inherit a render pass")
	}

	if err := vk.Error(vk.BeginCommandBuffer(cmd.cmd, &beginInfo)); err != nil {
		cmd.Release()
		return nil, errors.New("vk.BeginCommandBuffer(): " + err.Error())
	}
	return &Recorder{cmd: cmd}, nil
}

// Recorder implements gfx.Recorder
type Recorder struct {
	cmd *CommandBuffer
	err error
}

func (r *Recorder) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = errors.Errorf(format, args...)
	}
}

// SetViewport implements gfx.Recorder
func (r *Recorder) SetViewport(width, height float32) {
	vk.CmdSetViewport(r.cmd.cmd, 0, 1, []vk.Viewport{{
		Width:    width,
		Height:   height,
		MinDepth: 0,
		MaxDepth: 1,
	}})
}

// BindPipeline implements gfx.Recorder
func (r *Recorder) BindPipeline(p gfx.Pipeline) {
	pipeline, ok := p.(*Pipeline)
	if !ok {
		r.fail("vkr: foreign pipeline %T", p)
		return
	}
	vk.CmdBindPipeline(r.cmd.cmd, vk.PipelineBindPointGraphics, pipeline.pipeline)
}

// BindDescriptorSets implements gfx.Recorder
func (r *Recorder) BindDescriptorSets(p gfx.Pipeline, first uint32, sets ...gfx.DescriptorSet) {
	pipeline, ok := p.(*Pipeline)
	if !ok {
		r.fail("vkr: foreign pipeline %T", p)
		return
	}
	descriptorSets := make([]vk.DescriptorSet, len(sets))
	for idx, set := range sets {
		ds, ok := set.(*DescriptorSet)
		if !ok {
			r.fail("vkr: foreign descriptor set %T", set)
			return
		}
		descriptorSets[idx] = ds.set
	}
	vk.CmdBindDescriptorSets(r.cmd.cmd, vk.PipelineBindPointGraphics, pipeline.layout,
		first, uint32(len(descriptorSets)), descriptorSets, 0, nil)
}

// BindVertexBuffer implements gfx.Recorder
func (r *Recorder) BindVertexBuffer(binding uint32, b gfx.Buffer) {
	buffer, ok := b.(*Buffer)
	if !ok {
		r.fail("vkr: foreign buffer %T", b)
		return
	}
	vk.CmdBindVertexBuffers(r.cmd.cmd, binding, 1, []vk.Buffer{buffer.buffer}, []vk.DeviceSize{0})
}

// BindIndexBuffer implements gfx.Recorder, indices are 16 bit
func (r *Recorder) BindIndexBuffer(b gfx.Buffer) {
	buffer, ok := b.(*Buffer)
	if !ok {
		r.fail("vkr: foreign buffer %T", b)
		return
	}
	vk.CmdBindIndexBuffer(r.cmd.cmd, buffer.buffer, 0, vk.IndexTypeUint16)
}

// DrawIndexed implements gfx.Recorder
func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(r.cmd.cmd, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// BeginRenderPass implements gfx.Recorder
func (r *Recorder) BeginRenderPass(rp gfx.RenderPass, fb gfx.Framebuffer, clear [4]float32) {
	renderPass, ok := rp.(*RenderPass)
	if !ok {
		r.fail("vkr: foreign render pass %T", rp)
		return
	}
	framebuffer, ok := fb.(*Framebuffer)
	if !ok {
		r.fail("vkr: foreign framebuffer %T", fb)
		return
	}

	clearValues := make([]vk.ClearValue, 1)
	clearValues[0].SetColor(clear[:])

	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderPass.renderPass,
		Framebuffer: framebuffer.framebuffer,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{
				Width:  framebuffer.extent.Width,
				Height: framebuffer.extent.Height,
			},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(r.cmd.cmd, &rpbi, vk.SubpassContentsSecondaryCommandBuffers)
}

// ExecuteCommands implements gfx.Recorder
func (r *Recorder) ExecuteCommands(cmds ...gfx.CommandBuffer) {
	commandBuffers := make([]vk.CommandBuffer, len(cmds))
	for idx, c := range cmds {
		cb, ok := c.(*CommandBuffer)
		if !ok {
			r.fail("vkr: foreign command buffer %T", c)
			return
		}
		if cb.level != gfx.LevelSecondary {
			r.fail("vkr: only secondary command buffers can be executed")
			return
		}
		commandBuffers[idx] = cb.cmd
	}
	vk.CmdExecuteCommands(r.cmd.cmd, uint32(len(commandBuffers)), commandBuffers)
}

// EndRenderPass implements gfx.Recorder
func (r *Recorder) EndRenderPass() {
	vk.CmdEndRenderPass(r.cmd.cmd)
}

// CopyBufferToImage implements gfx.Recorder
func (r *Recorder) CopyBufferToImage(src gfx.Buffer, dst gfx.Image) {
	buffer, ok := src.(*Buffer)
	if !ok {
		r.fail("vkr: foreign buffer %T", src)
		return
	}
	image, ok := dst.(*Image)
	if !ok {
		r.fail("vkr: foreign image %T", dst)
		return
	}

	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{
			Width:  image.info.Extent.Width,
			Height: image.info.Extent.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(r.cmd.cmd, buffer.buffer, image.image,
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

// PipelineBarrier implements gfx.Recorder
func (r *Recorder) PipelineBarrier(barriers ...gfx.ImageBarrier) {
	if len(barriers) == 0 {
		return
	}

	var srcStages, dstStages vk.PipelineStageFlags
	imageBarriers := make([]vk.ImageMemoryBarrier, len(barriers))
	for idx, b := range barriers {
		image, ok := b.Image.(*Image)
		if !ok {
			r.fail("vkr: foreign image %T", b.Image)
			return
		}
		srcAccess, srcStage := access(b.Src)
		dstAccess, dstStage := access(b.Dst)
		srcStages |= srcStage
		dstStages |= dstStage

		imageBarriers[idx] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       srcAccess,
			DstAccessMask:       dstAccess,
			OldLayout:           Layout(b.OldLayout),
			NewLayout:           Layout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image.image,
			SubresourceRange:    colorSubresource,
		}
	}
	vk.CmdPipelineBarrier(r.cmd.cmd, srcStages, dstStages, 0, 0, nil, 0, nil,
		uint32(len(imageBarriers)), imageBarriers)
}

// End implements gfx.Recorder. A recording that failed is freed.
func (r *Recorder) End() (gfx.CommandBuffer, error) {
	if r.err != nil {
		r.cmd.Release()
		return nil, r.err
	}
	if err := vk.Error(vk.EndCommandBuffer(r.cmd.cmd)); err != nil {
		r.cmd.Release()
		return nil, errors.New("vk.EndCommandBuffer(): " + err.Error())
	}
	return r.cmd, nil
}

// CommandBuffer implements gfx.CommandBuffer
type CommandBuffer struct {
	device *Device
	cmd    vk.CommandBuffer
	level  gfx.CommandBufferLevel
	usage  gfx.CommandBufferUsage
}

// Level implements gfx.CommandBuffer
func (c *CommandBuffer) Level() gfx.CommandBufferLevel {
	return c.level
}

// Usage implements gfx.CommandBuffer
func (c *CommandBuffer) Usage() gfx.CommandBufferUsage {
	return c.usage
}

// Release implements gfx.Releasable
func (c *CommandBuffer) Release() {
	c.device.mutex.Lock()
	defer c.device.mutex.Unlock()
	vk.FreeCommandBuffers(c.device.device, c.device.commandPool, 1, []vk.CommandBuffer{c.cmd})
}

// CreateFence implements gfx.Device
func (d *Device) CreateFence() (gfx.Fence, error) {
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(d.device, &fci, nil, &fence)); err != nil {
		return nil, errors.New("vk.CreateFence(): " + err.Error())
	}
	return &Fence{
		device: d.device,
		fence:  fence,
	}, nil
}

// Fence implements gfx.Fence
type Fence struct {
	device vk.Device
	fence  vk.Fence
}

// Wait implements gfx.Fence
func (f *Fence) Wait(timeout time.Duration) error {
	if timeout < 0 {
		timeout = 0
	}
	ret := vk.WaitForFences(f.device, 1, []vk.Fence{f.fence}, vk.True, uint64(timeout))
	if ret == vk.Timeout {
		return gfx.ErrTimeout
	}
	if err := vk.Error(ret); err != nil {
		return errors.New("vk.WaitForFences(): " + err.Error())
	}
	return nil
}

// Signaled implements gfx.Fence
func (f *Fence) Signaled() (bool, error) {
	switch ret := vk.GetFenceStatus(f.device, f.fence); ret {
	case vk.Success:
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, errors.New("vk.GetFenceStatus(): " + vk.Error(ret).Error())
	}
}

// Release implements gfx.Releasable
func (f *Fence) Release() {
	vk.DestroyFence(f.device, f.fence, nil)
}

// Submit implements gfx.Device
func (d *Device) Submit(cmd gfx.CommandBuffer, fence gfx.Fence) error {
	cb, ok := cmd.(*CommandBuffer)
	if !ok {
		return errors.Errorf("vkr: foreign command buffer %T", cmd)
	}
	if cb.level != gfx.LevelPrimary {
		return errors.New("vkr: only primary command buffers can be submitted")
	}

	signal := vk.NullFence
	if fence != nil {
		f, ok := fence.(*Fence)
		if !ok {
			return errors.Errorf("vkr: foreign fence %T", fence)
		}
		signal = f.fence
	}

	submitInfo := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.cmd},
	}}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	if err := vk.Error(vk.QueueSubmit(d.queue, 1, submitInfo, signal)); err != nil {
		return errors.New("vk.QueueSubmit(): " + err.Error())
	}
	return nil
}

// WaitIdle implements gfx.Device
func (d *Device) WaitIdle() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if err := vk.Error(vk.QueueWaitIdle(d.queue)); err != nil {
		return errors.New("vk.QueueWaitIdle(): " + err.Error())
	}
	return nil
}
