package lighting

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

type fakeBuffer struct {
	id        int
	data      []byte
	destroyed bool
}

func (b *fakeBuffer) Size() uint64 {
	return uint64(len(b.data))
}

type fakeBackend struct {
	nextID    int
	created   []*fakeBuffer
	updated   []*fakeBuffer
	destroyed []*fakeBuffer
	// writes[slot] is the list of batches applied to that slot
	writes  map[int][][]DescriptorWrite
	bound   map[int]map[uint32]DescriptorWrite
	failNew bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		writes: make(map[int][][]DescriptorWrite),
		bound:  make(map[int]map[uint32]DescriptorWrite),
	}
}

func (f *fakeBackend) CreateStorageBuffer(data []byte) (Buffer, error) {
	if f.failNew {
		return nil, errors.New("out of device memory")
	}
	if len(data) == 0 {
		return nil, errors.New("zero sized buffer")
	}
	f.nextID++
	b := &fakeBuffer{id: f.nextID, data: append([]byte(nil), data...)}
	f.created = append(f.created, b)
	return b, nil
}

func (f *fakeBackend) UpdateStorageBuffer(buffer Buffer, data []byte) error {
	b := buffer.(*fakeBuffer)
	if b.destroyed {
		return errors.New("update of destroyed buffer")
	}
	if len(data) != len(b.data) {
		return errors.New("size mismatch")
	}
	copy(b.data, data)
	f.updated = append(f.updated, b)
	return nil
}

func (f *fakeBackend) DestroyBuffer(buffer Buffer) {
	b := buffer.(*fakeBuffer)
	b.destroyed = true
	f.destroyed = append(f.destroyed, b)
}

func (f *fakeBackend) WriteDescriptors(slot int, writes []DescriptorWrite) error {
	f.writes[slot] = append(f.writes[slot], append([]DescriptorWrite(nil), writes...))
	if f.bound[slot] == nil {
		f.bound[slot] = make(map[uint32]DescriptorWrite)
	}
	for _, w := range writes {
		f.bound[slot][w.Binding] = w
	}
	return nil
}

func (f *fakeBackend) boundBuffer(t *testing.T, slot int, binding uint32) *fakeBuffer {
	t.Helper()
	w, ok := f.bound[slot][binding]
	if !ok {
		t.Fatalf("slot %d: binding %d never written", slot, binding)
	}
	b := w.Buffer.(*fakeBuffer)
	if b.destroyed {
		t.Fatalf("slot %d: binding %d points at a destroyed buffer", slot, binding)
	}
	if w.Range != b.Size() {
		t.Fatalf("slot %d: binding %d range %d, buffer size %d", slot, binding, w.Range, b.Size())
	}
	return b
}

func readVec4(b []byte, i int) mgl32.Vec4 {
	var v mgl32.Vec4
	for c := 0; c < 4; c++ {
		v[c] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*16+c*4:]))
	}
	return v
}

func readInfo(b []byte) Info {
	return Info{
		NumberPointLights:       binary.LittleEndian.Uint32(b[0:]),
		NumberDirectionalLights: binary.LittleEndian.Uint32(b[4:]),
	}
}

const slots = 3

func TestFirstUpdateWithoutLightsCreatesDummyEntries(t *testing.T) {
	be := newFakeBackend()
	m := NewManager(be, slots)

	for s := 0; s < slots; s++ {
		if err := m.Update(s); err != nil {
			t.Fatalf("Update(%d): %v", s, err)
		}
	}

	if got := len(m.PointLights().Positions); got != 1 {
		t.Fatalf("point arrays hold %d entries, want exactly one dummy", got)
	}
	if got := len(m.DirectionalLights().Directions); got != 1 {
		t.Fatalf("directional arrays hold %d entries, want exactly one dummy", got)
	}
	if m.Counts() != (Info{}) {
		t.Fatalf("counts = %+v, want zero", m.Counts())
	}

	for s := 0; s < slots; s++ {
		for _, binding := range []uint32{BindingPointPosition, BindingPointColour, BindingDirectionalDirection, BindingDirectionalColour} {
			if b := be.boundBuffer(t, s, binding); b.Size() != uint64(vec4Size) {
				t.Fatalf("slot %d binding %d size %d, want %d", s, binding, b.Size(), vec4Size)
			}
		}
		if b := be.boundBuffer(t, s, BindingPointAttenuation); b.Size() != attenuationSize {
			t.Fatalf("attenuation size %d, want %d", b.Size(), attenuationSize)
		}
		info := readInfo(be.boundBuffer(t, s, BindingLightingInfo).data)
		if info != (Info{}) {
			t.Fatalf("slot %d info = %+v", s, info)
		}
		if len(be.writes[s]) != 1 {
			t.Fatalf("slot %d got %d descriptor batches, want 1", s, len(be.writes[s]))
		}
	}
}

func TestPointLightRoundTrip(t *testing.T) {
	be := newFakeBackend()
	m := NewManager(be, slots)

	m.AddPointLight(mgl32.Vec4{-10, 0, 0, 0}, mgl32.Vec4{1, 1, 1, 0}, AttenuationFactors{})
	if err := m.Update(1); err != nil {
		t.Fatal(err)
	}

	pos := be.boundBuffer(t, 1, BindingPointPosition)
	if pos.Size() != uint64(vec4Size) {
		t.Fatalf("position buffer size %d", pos.Size())
	}
	if got := readVec4(pos.data, 0); got != (mgl32.Vec4{-10, 0, 0, 0}) {
		t.Fatalf("position = %v", got)
	}
	if got := readVec4(be.boundBuffer(t, 1, BindingPointColour).data, 0); got != (mgl32.Vec4{1, 1, 1, 0}) {
		t.Fatalf("colour = %v", got)
	}
	info := readInfo(be.boundBuffer(t, 1, BindingLightingInfo).data)
	if info.NumberPointLights != 1 || info.NumberDirectionalLights != 0 {
		t.Fatalf("info = %+v", info)
	}
}

func TestFirstLightReplacesDummy(t *testing.T) {
	be := newFakeBackend()
	m := NewManager(be, slots)
	if err := m.Update(0); err != nil {
		t.Fatal(err)
	}

	m.AddPointLight(mgl32.Vec4{1, 2, 3, 0}, mgl32.Vec4{1, 0, 0, 0}, AttenuationFactors{1, 0.09, 0.032})
	if got := len(m.PointLights().Positions); got != 1 {
		t.Fatalf("arrays hold %d entries after first add, want 1", got)
	}
	m.AddPointLight(mgl32.Vec4{4, 5, 6, 0}, mgl32.Vec4{0, 1, 0, 0}, AttenuationFactors{1, 0, 0})
	if got := len(m.PointLights().Positions); got != 2 {
		t.Fatalf("arrays hold %d entries after second add, want 2", got)
	}
	if err := m.Update(0); err != nil {
		t.Fatal(err)
	}
	pos := be.boundBuffer(t, 0, BindingPointPosition)
	if readVec4(pos.data, 0) != (mgl32.Vec4{1, 2, 3, 0}) || readVec4(pos.data, 1) != (mgl32.Vec4{4, 5, 6, 0}) {
		t.Fatalf("unexpected positions in buffer")
	}
}

func TestBuffersRebuiltOnlyOnCountChange(t *testing.T) {
	be := newFakeBackend()
	m := NewManager(be, slots)
	for s := 0; s < slots; s++ {
		if err := m.Update(s); err != nil {
			t.Fatal(err)
		}
	}
	before := be.boundBuffer(t, 0, BindingPointPosition)
	created := len(be.created)

	// nothing changed: no buffers, no descriptor writes
	if err := m.Update(0); err != nil {
		t.Fatal(err)
	}
	if len(be.created) != created {
		t.Fatalf("buffers created without any change")
	}
	if len(be.writes[0]) != 1 {
		t.Fatalf("descriptor writes issued without any change")
	}

	id := m.AddPointLight(mgl32.Vec4{0, 5, 0, 0}, mgl32.Vec4{1, 1, 1, 0}, AttenuationFactors{1, 0, 0})
	if err := m.Update(0); err != nil {
		t.Fatal(err)
	}
	after := be.boundBuffer(t, 0, BindingPointPosition)
	if after == before || !before.destroyed {
		t.Fatalf("point buffer of slot 0 was not rebuilt on count change")
	}
	// directional buffers of slot 0 are untouched
	if be.boundBuffer(t, 0, BindingDirectionalDirection).destroyed {
		t.Fatalf("directional buffer rebuilt without a directional change")
	}

	// content-only change keeps the buffer object
	if err := m.SetPointLight(id, mgl32.Vec4{0, 7, 0, 0}, mgl32.Vec4{1, 1, 1, 0}, AttenuationFactors{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	created = len(be.created)
	if err := m.Update(0); err != nil {
		t.Fatal(err)
	}
	if len(be.created) != created {
		t.Fatalf("content-only change created new buffers")
	}
	same := be.boundBuffer(t, 0, BindingPointPosition)
	if same != after {
		t.Fatalf("content-only change replaced the buffer object")
	}
	if readVec4(same.data, 0) != (mgl32.Vec4{0, 7, 0, 0}) {
		t.Fatalf("content was not refreshed: %v", readVec4(same.data, 0))
	}

	// the other slots still see both changes as a single rebuild
	if err := m.Update(2); err != nil {
		t.Fatal(err)
	}
	if got := readVec4(be.boundBuffer(t, 2, BindingPointPosition).data, 0); got != (mgl32.Vec4{0, 7, 0, 0}) {
		t.Fatalf("slot 2 position = %v", got)
	}
}

func TestDirectionalAfterPointIsSeenIndependently(t *testing.T) {
	be := newFakeBackend()
	m := NewManager(be, slots)

	m.AddPointLight(mgl32.Vec4{-10, 0, 0, 0}, mgl32.Vec4{1, 1, 1, 0}, AttenuationFactors{})
	if err := m.Update(0); err != nil {
		t.Fatal(err)
	}
	for _, a := range AllAspects(KindPoint) {
		if m.Dirty().IsPending(0, KindPoint, a) {
			t.Fatalf("slot 0 point %s still pending after update", a)
		}
	}

	m.AddDirectionalLight(mgl32.Vec4{0, 0, 1, 0}, mgl32.Vec4{0.8, 0.8, 0.8, 0})
	for _, a := range AllAspects(KindDirectional) {
		if m.Dirty().Global(KindDirectional, a) != Pending {
			t.Fatalf("directional %s not pending globally", a)
		}
	}
	for _, a := range AllAspects(KindPoint) {
		if m.Dirty().Global(KindPoint, a) != Clean {
			t.Fatalf("point %s marked by a directional add", a)
		}
	}

	pointBefore := be.boundBuffer(t, 0, BindingPointPosition)
	if err := m.Update(0); err != nil {
		t.Fatal(err)
	}
	if be.boundBuffer(t, 0, BindingPointPosition) != pointBefore {
		t.Fatalf("point buffers rebuilt by a directional add")
	}
	if got := readVec4(be.boundBuffer(t, 0, BindingDirectionalDirection).data, 0); got != (mgl32.Vec4{0, 0, 1, 0}) {
		t.Fatalf("direction = %v", got)
	}
	info := readInfo(be.boundBuffer(t, 0, BindingLightingInfo).data)
	if info != (Info{NumberPointLights: 1, NumberDirectionalLights: 1}) {
		t.Fatalf("info = %+v", info)
	}

	// slot 1 has not rendered yet and picks up both kinds at once
	if err := m.Update(1); err != nil {
		t.Fatal(err)
	}
	info = readInfo(be.boundBuffer(t, 1, BindingLightingInfo).data)
	if info != (Info{NumberPointLights: 1, NumberDirectionalLights: 1}) {
		t.Fatalf("slot 1 info = %+v", info)
	}
}

func TestEachSlotConsumesChangeOnce(t *testing.T) {
	be := newFakeBackend()
	m := NewManager(be, slots)
	m.AddPointLight(mgl32.Vec4{}, mgl32.Vec4{1, 1, 1, 0}, AttenuationFactors{})

	for frame := 0; frame < 2*slots; frame++ {
		s := frame % slots
		if err := m.Update(s); err != nil {
			t.Fatal(err)
		}
	}
	for s := 0; s < slots; s++ {
		if len(be.writes[s]) != 1 {
			t.Fatalf("slot %d applied %d descriptor batches, want 1", s, len(be.writes[s]))
		}
	}
}

func TestFailedBuildIsRetried(t *testing.T) {
	be := newFakeBackend()
	m := NewManager(be, slots)
	be.failNew = true
	if err := m.Update(0); err == nil {
		t.Fatal("expected an error when buffer creation fails")
	}
	be.failNew = false
	if err := m.Update(0); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	be.boundBuffer(t, 0, BindingPointPosition)
	be.boundBuffer(t, 0, BindingLightingInfo)
}

func TestDestroyReleasesEverything(t *testing.T) {
	be := newFakeBackend()
	m := NewManager(be, slots)
	for s := 0; s < slots; s++ {
		if err := m.Update(s); err != nil {
			t.Fatal(err)
		}
	}
	m.Destroy()
	for _, b := range be.created {
		if !b.destroyed {
			t.Fatalf("buffer %d leaked", b.id)
		}
	}
	if len(be.destroyed) != len(be.created) {
		t.Fatalf("destroyed %d buffers, created %d", len(be.destroyed), len(be.created))
	}
}

func TestUpdateRejectsBadSlot(t *testing.T) {
	m := NewManager(newFakeBackend(), slots)
	if err := m.Update(slots); err == nil {
		t.Fatal("expected an error for an out of range slot")
	}
	if err := m.SetPointLight(0, mgl32.Vec4{}, mgl32.Vec4{}, AttenuationFactors{}); err == nil {
		t.Fatal("expected an error for a missing light")
	}
}
