// Package mesh describes the vertex layout consumed by the graphics pipeline
// and encodes vertex data for upload.
package mesh

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
)

type Vertex struct {
	Position mgl32.Vec2
	Color    mgl32.Vec3
}

// Triangle is the fixed geometry drawn every frame.
var Triangle = []Vertex{
	{Position: mgl32.Vec2{0, -0.5}, Color: mgl32.Vec3{1, 0, 0}},
	{Position: mgl32.Vec2{0.5, 0.5}, Color: mgl32.Vec3{0, 1, 0}},
	{Position: mgl32.Vec2{-0.5, 0.5}, Color: mgl32.Vec3{0, 0, 1}},
}

func BindingDescriptions() []core1_0.VertexInputBindingDescription {
	v := Vertex{}
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    int(unsafe.Sizeof(v)),
			InputRate: core1_0.RateVertex,
		},
	}
}

func AttributeDescriptions() []core1_0.VertexInputAttributeDescription {
	v := Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
	}
}

// Encode lays vertices out exactly as the pipeline's vertex input reads them.
func Encode(vertices []Vertex) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, common.ByteOrder, vertices); err != nil {
		return nil, errors.Wrap(err, "encode vertices")
	}
	return buf.Bytes(), nil
}

func Decode(data []byte) ([]Vertex, error) {
	size := int(unsafe.Sizeof(Vertex{}))
	if len(data)%size != 0 {
		return nil, errors.Newf("%d bytes is not a whole number of %d-byte vertices", len(data), size)
	}

	vertices := make([]Vertex, len(data)/size)
	if err := binary.Read(bytes.NewReader(data), common.ByteOrder, vertices); err != nil {
		return nil, errors.Wrap(err, "decode vertices")
	}
	return vertices, nil
}
