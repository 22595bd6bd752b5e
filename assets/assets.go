// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package assets describes the shader pairs the overlay draws with.
// Manifests naming the compiled stages and their descriptor bindings are
// embedded in the binary, the SPIR-V itself is read from an asset archive.
package assets

//go:generate glslangValidator -V shaders/quad.vert -o shaders/quad.vert.spv
//go:generate glslangValidator -V shaders/quad.frag -o shaders/quad.frag.spv
//go:generate glslangValidator -V shaders/color.frag -o shaders/color.frag.spv

import (
	"encoding/binary"
	"encoding/json"
	"path"
	"sort"
	"strings"

	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"

	"github.com/devblok/overlaygfx/gfx"
)

// SpirvMagic starts every SPIR-V module
const SpirvMagic = 0x07230203

// Shader pairs shipped with the overlay
const (
	Quad  = "quad"
	Color = "color"
)

var manifests = packr.NewBox("./manifests")

// Files gives access to files by name, as a kar.Archive does
type Files interface {
	ReadAll(name string) ([]byte, error)
}

// Binding is one descriptor binding of a manifest
type Binding struct {
	Set     uint32   `json:"set"`
	Binding uint32   `json:"binding"`
	Type    string   `json:"type"`
	Stages  []string `json:"stages"`
}

// Manifest names the compiled stages of a shader pair
// and the descriptor bindings they use
type Manifest struct {
	Name     string    `json:"name"`
	Vertex   string    `json:"vertex"`
	Fragment string    `json:"fragment"`
	Bindings []Binding `json:"bindings"`
}

var descriptorTypes = map[string]gfx.DescriptorType{
	"sampler": gfx.DescriptorCombinedImageSampler,
	"uniform": gfx.DescriptorUniformBuffer,
}

var shaderStages = map[string]gfx.ShaderStage{
	"vertex":   gfx.StageVertex,
	"fragment": gfx.StageFragment,
}

// DescriptorBindings converts the bindings of m
func (m Manifest) DescriptorBindings() ([]gfx.DescriptorBinding, error) {
	bindings := make([]gfx.DescriptorBinding, 0, len(m.Bindings))
	for _, b := range m.Bindings {
		kind, ok := descriptorTypes[b.Type]
		if !ok {
			return nil, errors.Errorf("%s: unknown descriptor type %q", m.Name, b.Type)
		}

		var stages gfx.ShaderStage
		for _, s := range b.Stages {
			stage, ok := shaderStages[s]
			if !ok {
				return nil, errors.Errorf("%s: unknown shader stage %q", m.Name, s)
			}
			stages |= stage
		}
		if stages == 0 {
			return nil, errors.Errorf("%s: binding %d of set %d is used by no stage", m.Name, b.Binding, b.Set)
		}

		bindings = append(bindings, gfx.DescriptorBinding{
			Set:     b.Set,
			Binding: b.Binding,
			Type:    kind,
			Stages:  stages,
		})
	}
	return bindings, nil
}

// Manifests lists the names of the embedded manifests
func Manifests() []string {
	var names []string
	for _, file := range manifests.List() {
		if path.Ext(file) == ".json" {
			names = append(names, strings.TrimSuffix(path.Base(file), ".json"))
		}
	}
	sort.Strings(names)
	return names
}

// LoadManifest decodes the embedded manifest of the named shader pair
func LoadManifest(name string) (Manifest, error) {
	data, err := manifests.Find(name + ".json")
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "manifest %s", name)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrapf(err, "manifest %s", name)
	}
	if m.Name == "" {
		m.Name = name
	}
	return m, nil
}

// LoadShaderPair reads the stages of the named shader pair from files
func LoadShaderPair(files Files, name string) (gfx.ShaderPair, error) {
	m, err := LoadManifest(name)
	if err != nil {
		return gfx.ShaderPair{}, err
	}
	return ShaderPair(files, m)
}

// ShaderPair reads the stages m names from files
func ShaderPair(files Files, m Manifest) (gfx.ShaderPair, error) {
	bindings, err := m.DescriptorBindings()
	if err != nil {
		return gfx.ShaderPair{}, err
	}

	vertex, err := readSpirv(files, m.Vertex)
	if err != nil {
		return gfx.ShaderPair{}, errors.Wrapf(err, "%s: vertex stage", m.Name)
	}
	fragment, err := readSpirv(files, m.Fragment)
	if err != nil {
		return gfx.ShaderPair{}, errors.Wrapf(err, "%s: fragment stage", m.Name)
	}

	return gfx.ShaderPair{
		Name:     m.Name,
		Vertex:   vertex,
		Fragment: fragment,
		Bindings: bindings,
	}, nil
}

func readSpirv(files Files, name string) ([]byte, error) {
	data, err := files.ReadAll(name)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 || len(data)%4 != 0 || binary.LittleEndian.Uint32(data) != SpirvMagic {
		return nil, errors.Errorf("%s is not a SPIR-V module", name)
	}
	return data, nil
}
