package vkr

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// SliceUint32 copies SPIR-V bytes into the words shader modules are
// created from. The copy keeps the words aligned whatever the
// alignment of data is.
func SliceUint32(data []byte) ([]uint32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errors.Errorf("shader code of %d bytes is not made of 32 bit words", len(data))
	}
	words := make([]uint32, len(data)/4)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(data)), data)
	return words, nil
}

func (d *Device) createShaderModule(name string, code []byte) (vk.ShaderModule, error) {
	words, err := SliceUint32(code)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}

	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}

	var shader vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(d.device, &smci, nil, &shader)); err != nil {
		return nil, errors.Errorf("vk.CreateShaderModule(%s): %s", name, err.Error())
	}
	return shader, nil
}
