package world

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/math"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
	"github.com/spaghettifunk/umbra/engine/systems"
)

// ModelLoader reads a model from disk.
type ModelLoader func(path string) (*metadata.ModelData, error)

// Renderer is the part of the renderer front-end the world needs.
type Renderer interface {
	UploadModel(model *metadata.ModelData) (int, int, error)
	DrawFrame(packet *metadata.RenderPacket) error
}

type EntityInfo struct {
	Name string
	// Model path; empty for entities that are never drawn.
	Model      string
	Position   mgl32.Vec3
	Renderable bool
}

type Entity struct {
	ID        uint32
	Name      string
	Transform mgl32.Mat4
	// set for renderable entities
	Renderable *Renderable
}

// Renderable is the pair of GPU resource ids an entity draws with.
type Renderable struct {
	BufferGroup   int
	MaterialGroup int
}

/**
 * @brief Entities and their renderables. Models are uploaded once per path
 * and shared by every entity that uses them.
 */
type World struct {
	renderer Renderer
	load     ModelLoader
	extent   [2]uint32

	ids      *core.IDPool
	entities map[uint32]*Entity
	order    []uint32
	models   map[string]Renderable
}

func New(renderer Renderer, load ModelLoader, width, height uint32) *World {
	return &World{
		renderer: renderer,
		load:     load,
		extent:   [2]uint32{width, height},
		ids:      core.NewIDPool(),
		entities: make(map[uint32]*Entity),
		models:   make(map[string]Renderable),
	}
}

// AddEntity creates an entity and, when it is renderable, uploads its model
// unless another entity already did.
func (w *World) AddEntity(info EntityInfo) (uint32, error) {
	entity := &Entity{
		Name:      info.Name,
		Transform: mgl32.Translate3D(info.Position.X(), info.Position.Y(), info.Position.Z()),
	}

	if info.Renderable {
		if info.Model == "" {
			return 0, core.Errorf(core.ErrorKindConfig, "world.AddEntity", "renderable entity %s has no model", info.Name)
		}
		renderable, err := w.renderable(info.Model)
		if err != nil {
			return 0, err
		}
		entity.Renderable = &renderable
	}

	entity.ID = w.ids.Acquire(entity)
	w.entities[entity.ID] = entity
	w.order = append(w.order, entity.ID)
	core.LogDebug("Entity %s added with id %d.", info.Name, entity.ID)
	return entity.ID, nil
}

func (w *World) renderable(path string) (Renderable, error) {
	if r, ok := w.models[path]; ok {
		return r, nil
	}
	model, err := w.load(path)
	if err != nil {
		return Renderable{}, err
	}
	bufferGroup, materialGroup, err := w.renderer.UploadModel(model)
	if err != nil {
		return Renderable{}, err
	}
	r := Renderable{BufferGroup: bufferGroup, MaterialGroup: materialGroup}
	w.models[path] = r
	return r, nil
}

/**
 * @brief Reads the models at paths on the job system workers and uploads them
 * as each one arrives. Uploads happen on the calling goroutine, inside
 * jobs.Wait. Paths already uploaded are skipped; the errors of every failed
 * path are joined.
 */
func (w *World) Preload(jobs *systems.JobSystem, paths []string) error {
	var errs []error
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if _, ok := w.models[path]; ok || seen[path] || path == "" {
			continue
		}
		seen[path] = true

		path := path
		jobs.Submit(systems.JobTask{
			Name: "load " + path,
			OnStart: func() (interface{}, error) {
				return w.load(path)
			},
			OnComplete: func(result interface{}) {
				bufferGroup, materialGroup, err := w.renderer.UploadModel(result.(*metadata.ModelData))
				if err != nil {
					errs = append(errs, err)
					return
				}
				w.models[path] = Renderable{BufferGroup: bufferGroup, MaterialGroup: materialGroup}
			},
			OnFailure: func(err error) {
				errs = append(errs, err)
			},
		})
	}
	jobs.Wait()
	return errors.Join(errs...)
}

func (w *World) RemoveEntity(id uint32) error {
	if _, ok := w.entities[id]; !ok {
		return core.Errorf(core.ErrorKindInvalidState, "world.RemoveEntity", "no entity %d", id)
	}
	delete(w.entities, id)
	for i, e := range w.order {
		if e == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return w.ids.Release(id)
}

func (w *World) Entity(id uint32) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

func (w *World) SetTransform(id uint32, transform mgl32.Mat4) error {
	e, ok := w.entities[id]
	if !ok {
		return core.Errorf(core.ErrorKindInvalidState, "world.SetTransform", "no entity %d", id)
	}
	e.Transform = transform
	return nil
}

func (w *World) Len() int {
	return len(w.entities)
}

// Packet builds the render packet of the current frame: every renderable
// entity in insertion order, seen from camera.
func (w *World) Packet(camera *math.Camera, deltaTime float64) *metadata.RenderPacket {
	packet := &metadata.RenderPacket{
		DeltaTime: deltaTime,
		Camera:    camera.GPUData(w.extent[0], w.extent[1]),
	}
	for _, id := range w.order {
		e := w.entities[id]
		if e.Renderable == nil {
			continue
		}
		packet.Objects = append(packet.Objects, metadata.RenderObject{
			BufferGroup:   e.Renderable.BufferGroup,
			MaterialGroup: e.Renderable.MaterialGroup,
			Transform:     e.Transform,
		})
	}
	return packet
}

// Render draws the world from camera.
func (w *World) Render(camera *math.Camera, deltaTime float64) error {
	return w.renderer.DrawFrame(w.Packet(camera, deltaTime))
}
