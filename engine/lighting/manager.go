package lighting

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/umbra/engine/core"
)

// Scene descriptor set bindings. Binding 0 is the camera uniform buffer,
// owned by the frame slot; the rest belong to the lighting manager.
const (
	BindingCamera               uint32 = 0
	BindingPointPosition        uint32 = 1
	BindingPointColour          uint32 = 2
	BindingPointAttenuation     uint32 = 3
	BindingDirectionalDirection uint32 = 4
	BindingDirectionalColour    uint32 = 5
	BindingLightingInfo         uint32 = 6
)

// Buffer is a GPU storage buffer created by a Backend.
type Buffer interface {
	Size() uint64
}

// DescriptorWrite points one scene-set binding at a range of a buffer.
type DescriptorWrite struct {
	Binding uint32
	Buffer  Buffer
	Offset  uint64
	Range   uint64
}

// Backend is the GPU side of the lighting manager.
type Backend interface {
	// CreateStorageBuffer uploads data into a new device-local storage buffer.
	CreateStorageBuffer(data []byte) (Buffer, error)
	// UpdateStorageBuffer overwrites the content of an existing buffer.
	UpdateStorageBuffer(buffer Buffer, data []byte) error
	DestroyBuffer(buffer Buffer)
	// WriteDescriptors applies all writes to the scene set of slot in one batch.
	WriteDescriptors(slot int, writes []DescriptorWrite) error
}

type slotBuffers struct {
	info        Buffer
	point       [3]Buffer // position, colour, attenuation
	directional [2]Buffer // direction, colour
}

// Manager owns the CPU light arrays and one GPU mirror of them per frame slot.
//
// Lights are added outside the render loop. Update is called once per frame
// for the slot about to be recorded, after its fence has been waited on, and
// rebuilds or rebinds only what that slot has not seen yet.
type Manager struct {
	backend Backend

	point            PointLights
	pointCount       uint32
	directional      DirectionalLights
	directionalCount uint32

	dirty *DirtyTracker
	slots []slotBuffers
}

func NewManager(backend Backend, slotCount int) *Manager {
	m := &Manager{
		backend: backend,
		dirty:   NewDirtyTracker(slotCount),
		slots:   make([]slotBuffers, slotCount),
	}
	// every slot builds its buffers on its first frame, lights or not
	m.dirty.MarkAll()
	return m
}

// AddPointLight appends a point light and returns its index.
func (m *Manager) AddPointLight(position, colour mgl32.Vec4, attenuation AttenuationFactors) int {
	id := int(m.pointCount)
	m.point.set(id, position, colour, attenuation)
	m.pointCount++
	m.dirty.Mark(KindPoint, AllAspects(KindPoint)...)
	core.LogDebug("point light %d added at %v", id, position)
	return id
}

// AddDirectionalLight appends a directional light and returns its index.
func (m *Manager) AddDirectionalLight(direction, colour mgl32.Vec4) int {
	id := int(m.directionalCount)
	m.directional.set(id, direction, colour)
	m.directionalCount++
	m.dirty.Mark(KindDirectional, AllAspects(KindDirectional)...)
	core.LogDebug("directional light %d added towards %v", id, direction)
	return id
}

// SetPointLight changes an existing point light. Only the content aspects are
// marked, so slots keep their buffers and refresh them in place.
func (m *Manager) SetPointLight(id int, position, colour mgl32.Vec4, attenuation AttenuationFactors) error {
	if id < 0 || id >= int(m.pointCount) {
		return core.Errorf(core.ErrorKindInvalidState, "lighting.SetPointLight", "point light %d does not exist (count %d)", id, m.pointCount)
	}
	m.point.set(id, position, colour, attenuation)
	m.dirty.Mark(KindPoint, ContentAspects(KindPoint)...)
	return nil
}

// SetDirectionalLight changes an existing directional light.
func (m *Manager) SetDirectionalLight(id int, direction, colour mgl32.Vec4) error {
	if id < 0 || id >= int(m.directionalCount) {
		return core.Errorf(core.ErrorKindInvalidState, "lighting.SetDirectionalLight", "directional light %d does not exist (count %d)", id, m.directionalCount)
	}
	m.directional.set(id, direction, colour)
	m.dirty.Mark(KindDirectional, ContentAspects(KindDirectional)...)
	return nil
}

func (m *Manager) Counts() Info {
	return Info{
		NumberPointLights:       m.pointCount,
		NumberDirectionalLights: m.directionalCount,
	}
}

// PointLights exposes the CPU arrays, dummy entry included.
func (m *Manager) PointLights() PointLights {
	return m.point
}

func (m *Manager) DirectionalLights() DirectionalLights {
	return m.directional
}

func (m *Manager) Dirty() *DirtyTracker {
	return m.dirty
}

// Update brings the GPU buffers and scene-set bindings of slot up to date.
func (m *Manager) Update(slot int) error {
	if slot < 0 || slot >= len(m.slots) {
		return core.Errorf(core.ErrorKindInvalidState, "lighting.Update", "slot %d out of range [0,%d)", slot, len(m.slots))
	}
	m.dirty.Propagate()

	var writes []DescriptorWrite

	if m.dirty.IsPending(slot, KindPoint, AspectResize) || m.dirty.IsPending(slot, KindDirectional, AspectResize) {
		w, err := m.rebuildInfo(slot)
		if err != nil {
			return err
		}
		writes = append(writes, w)
	}

	for k := Kind(0); k < kindCount; k++ {
		resized := false
		if m.dirty.IsPending(slot, k, AspectResize) {
			if err := m.rebuildKind(slot, k); err != nil {
				return err
			}
			m.dirty.Consume(slot, k, AspectResize)
			resized = true
		}
		for _, a := range ContentAspects(k) {
			if !m.dirty.IsPending(slot, k, a) {
				continue
			}
			buf, data, binding := m.aspectData(slot, k, a)
			if !resized {
				// buffer object is kept, only its content is stale
				if err := m.backend.UpdateStorageBuffer(buf, data); err != nil {
					return fmt.Errorf("refresh %s %s buffer of slot %d: %w", k, a, slot, err)
				}
			}
			writes = append(writes, DescriptorWrite{
				Binding: binding,
				Buffer:  buf,
				Offset:  0,
				Range:   uint64(len(data)),
			})
			m.dirty.Consume(slot, k, a)
		}
	}

	if len(writes) == 0 {
		return nil
	}
	return m.backend.WriteDescriptors(slot, writes)
}

// Destroy releases the buffers of every slot.
func (m *Manager) Destroy() {
	for s := range m.slots {
		sb := &m.slots[s]
		m.destroy(&sb.info)
		for i := range sb.point {
			m.destroy(&sb.point[i])
		}
		for i := range sb.directional {
			m.destroy(&sb.directional[i])
		}
	}
}

func (m *Manager) destroy(b *Buffer) {
	if *b != nil {
		m.backend.DestroyBuffer(*b)
		*b = nil
	}
}

func (m *Manager) rebuildInfo(slot int) (DescriptorWrite, error) {
	sb := &m.slots[slot]
	m.destroy(&sb.info)

	info := m.Counts()
	buf, err := m.backend.CreateStorageBuffer(core.ValueBytes(&info))
	if err != nil {
		return DescriptorWrite{}, fmt.Errorf("create lighting info buffer for slot %d: %w", slot, err)
	}
	sb.info = buf
	return DescriptorWrite{Binding: BindingLightingInfo, Buffer: buf, Offset: 0, Range: infoSize}, nil
}

// ensureDummy keeps at least one entry in the arrays of a kind: zero-sized
// buffers cannot be created.
func (m *Manager) ensureDummy(k Kind) {
	switch k {
	case KindPoint:
		if m.pointCount == 0 && m.point.len() == 0 {
			m.point.set(0, mgl32.Vec4{}, mgl32.Vec4{}, AttenuationFactors{})
		}
	case KindDirectional:
		if m.directionalCount == 0 && m.directional.len() == 0 {
			m.directional.set(0, mgl32.Vec4{}, mgl32.Vec4{})
		}
	}
}

func (m *Manager) rebuildKind(slot int, k Kind) error {
	m.ensureDummy(k)

	sb := &m.slots[slot]
	var targets []*Buffer
	switch k {
	case KindPoint:
		targets = []*Buffer{&sb.point[0], &sb.point[1], &sb.point[2]}
	case KindDirectional:
		targets = []*Buffer{&sb.directional[0], &sb.directional[1]}
	}

	for i, a := range ContentAspects(k) {
		m.destroy(targets[i])
		_, data, _ := m.aspectData(slot, k, a)
		buf, err := m.backend.CreateStorageBuffer(data)
		if err != nil {
			return fmt.Errorf("create %s %s buffer for slot %d: %w", k, a, slot, err)
		}
		*targets[i] = buf
	}
	core.LogDebug("slot %d: rebuilt %s light buffers", slot, k)
	return nil
}

// aspectData returns the slot buffer, the CPU bytes and the binding of one
// content aspect.
func (m *Manager) aspectData(slot int, k Kind, a Aspect) (Buffer, []byte, uint32) {
	sb := &m.slots[slot]
	switch k {
	case KindPoint:
		switch a {
		case AspectPosition:
			return sb.point[0], core.BytesOf(m.point.Positions), BindingPointPosition
		case AspectColour:
			return sb.point[1], core.BytesOf(m.point.Colours), BindingPointColour
		case AspectAttenuation:
			return sb.point[2], core.BytesOf(m.point.Attenuations), BindingPointAttenuation
		}
	case KindDirectional:
		switch a {
		case AspectDirection:
			return sb.directional[0], core.BytesOf(m.directional.Directions), BindingDirectionalDirection
		case AspectColour:
			return sb.directional[1], core.BytesOf(m.directional.Colours), BindingDirectionalColour
		}
	}
	panic(fmt.Sprintf("lighting: no buffer for %s %s", k, a))
}
