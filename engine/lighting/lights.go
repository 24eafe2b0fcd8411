package lighting

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// AttenuationFactors follows the usual constant + linear*d + quadratic*d^2
// falloff. Laid out as three tightly packed floats to match the std430 array
// stride of the shader struct.
type AttenuationFactors struct {
	Constant  float32
	Linear    float32
	Quadratic float32
}

// PointLights is the struct-of-arrays store for point lights. Each slice maps
// one-to-one onto a storage buffer.
type PointLights struct {
	Positions    []mgl32.Vec4
	Colours      []mgl32.Vec4
	Attenuations []AttenuationFactors
}

// DirectionalLights is the struct-of-arrays store for directional lights.
type DirectionalLights struct {
	Directions []mgl32.Vec4
	Colours    []mgl32.Vec4
}

// Info is the content of the lighting info buffer read by the lighting pass
// to bound its loops.
type Info struct {
	NumberPointLights       uint32
	NumberDirectionalLights uint32
}

const (
	vec4Size        = uint64(unsafe.Sizeof(mgl32.Vec4{}))
	attenuationSize = uint64(unsafe.Sizeof(AttenuationFactors{}))
	infoSize        = uint64(unsafe.Sizeof(Info{}))
)

func (p *PointLights) len() int {
	return len(p.Positions)
}

func (p *PointLights) set(i int, position, colour mgl32.Vec4, attenuation AttenuationFactors) {
	if i == len(p.Positions) {
		p.Positions = append(p.Positions, position)
		p.Colours = append(p.Colours, colour)
		p.Attenuations = append(p.Attenuations, attenuation)
		return
	}
	p.Positions[i] = position
	p.Colours[i] = colour
	p.Attenuations[i] = attenuation
}

func (d *DirectionalLights) len() int {
	return len(d.Directions)
}

func (d *DirectionalLights) set(i int, direction, colour mgl32.Vec4) {
	if i == len(d.Directions) {
		d.Directions = append(d.Directions, direction)
		d.Colours = append(d.Colours, colour)
		return
	}
	d.Directions[i] = direction
	d.Colours[i] = colour
}
