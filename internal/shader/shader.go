// Package shader loads precompiled SPIR-V blobs and turns them into shader
// modules.
package shader

import (
	"io/fs"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

var (
	ErrShaderLoad         = errors.New("failed to load shader")
	ErrShaderModuleCreate = errors.New("failed to create shader module")
)

// BytesToBytecode reinterprets little-endian SPIR-V bytes as 32-bit words.
func BytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Newf("spir-v blob of %d bytes is not a whole number of words", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode, nil
}

// Load reads one blob from fsys. Any failure is an ErrShaderLoad.
func Load(fsys fs.FS, path string) ([]uint32, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read shader %s", path), ErrShaderLoad)
	}

	code, err := BytesToBytecode(data)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decode shader %s", path), ErrShaderLoad)
	}
	return code, nil
}

type Paths struct {
	Vertex   string
	Fragment string
}

// Pair holds the vertex and fragment modules of the one graphics pipeline.
type Pair struct {
	Vertex   core1_0.ShaderModule
	Fragment core1_0.ShaderModule
}

// LoadPair reads both blobs and creates their modules. On failure nothing is
// left allocated.
func LoadPair(device core1_0.Device, fsys fs.FS, paths Paths) (*Pair, error) {
	vertCode, err := Load(fsys, paths.Vertex)
	if err != nil {
		return nil, err
	}
	fragCode, err := Load(fsys, paths.Fragment)
	if err != nil {
		return nil, err
	}

	pair := &Pair{}
	pair.Vertex, _, err = device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: vertCode,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "vertex shader %s", paths.Vertex), ErrShaderModuleCreate)
	}

	pair.Fragment, _, err = device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: fragCode,
	})
	if err != nil {
		pair.Destroy()
		return nil, errors.Mark(errors.Wrapf(err, "fragment shader %s", paths.Fragment), ErrShaderModuleCreate)
	}

	return pair, nil
}

func (p *Pair) Destroy() {
	if p.Fragment != nil {
		p.Fragment.Destroy(nil)
		p.Fragment = nil
	}
	if p.Vertex != nil {
		p.Vertex.Destroy(nil)
		p.Vertex = nil
	}
}
