package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

type fakeShaderLoader struct {
	fail  map[string]bool
	loads []string
}

func (f *fakeShaderLoader) Load(source string) ([]uint32, error) {
	f.loads = append(f.loads, source)
	if f.fail[source] {
		return nil, errors.New("syntax error")
	}
	return []uint32{0x07230203, 0x00010000}, nil
}

func testPipeline(loader ShaderLoader) *VulkanPipeline {
	return NewVulkanPipeline(nil, VulkanPipelineConfig{
		Name:      "deferred",
		Extent:    vk.Extent2D{Width: 320, Height: 200},
		Instances: FrameOverlap,
		Shaders:   loader,
	})
}

func TestShaderFailureBlocksBuild(t *testing.T) {
	loader := &fakeShaderLoader{fail: map[string]bool{"shaders/deferred.frag": true}}
	p := testPipeline(loader)

	err := p.AddShaders("shaders/deferred.vert", "shaders/deferred.frag")
	if !errors.Is(err, core.ErrShaderCompileFailed) {
		t.Fatalf("AddShaders error = %v, want shader compile failure", err)
	}

	err = p.BuildPipeline()
	if !errors.Is(err, core.ErrPipelineCreationFailed) {
		t.Fatalf("BuildPipeline error = %v, want pipeline creation failure", err)
	}
}

func TestBuildWithoutShadersFails(t *testing.T) {
	p := testPipeline(&fakeShaderLoader{})
	if err := p.BuildPipeline(); !errors.Is(err, core.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestUsesShader(t *testing.T) {
	loader := &fakeShaderLoader{}
	p := testPipeline(loader)
	if err := p.AddShaders("resources/shaders/lighting.vert", "resources/shaders/lighting.frag"); err != nil {
		t.Fatal(err)
	}
	if len(loader.loads) != 2 {
		t.Fatalf("loader called %d times", len(loader.loads))
	}
	if !p.UsesShader("resources/shaders/../shaders/lighting.frag") {
		t.Error("fragment stage not recognised")
	}
	if p.UsesShader("resources/shaders/deferred.frag") {
		t.Error("unrelated shader recognised")
	}
}

func TestPushConstantRangesArePacked(t *testing.T) {
	p := testPipeline(&fakeShaderLoader{})
	p.AddPushConstant(vk.ShaderStageFlags(vk.ShaderStageVertexBit), 80)
	p.AddPushConstant(vk.ShaderStageFlags(vk.ShaderStageFragmentBit), 16)

	if len(p.pushConstants) != 2 {
		t.Fatalf("got %d ranges", len(p.pushConstants))
	}
	if p.pushConstants[0].Offset != 0 || p.pushConstants[1].Offset != 80 {
		t.Errorf("offsets = %d, %d", p.pushConstants[0].Offset, p.pushConstants[1].Offset)
	}
}
