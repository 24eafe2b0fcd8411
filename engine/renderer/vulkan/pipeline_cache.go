package vulkan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

func pipelineCachePath(dir, name string) string {
	return filepath.Join(dir, name+".cache")
}

// ReadPipelineCacheFile returns the stored cache blob for name, or an empty
// blob when none was written yet.
func ReadPipelineCacheFile(dir, name string) ([]byte, error) {
	data, err := os.ReadFile(pipelineCachePath(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading pipeline cache %s: %w", name, err)
	}
	return data, nil
}

func WritePipelineCacheBlob(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating pipeline cache dir: %w", err)
	}
	if err := os.WriteFile(pipelineCachePath(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing pipeline cache %s: %w", name, err)
	}
	return nil
}

// NewPipelineCache seeds a driver cache from the blob on disk. A blob the
// driver rejects is dropped and an empty cache is created instead.
func NewPipelineCache(context *VulkanContext, dir, name string) (vk.PipelineCache, error) {
	blob, err := ReadPipelineCacheFile(dir, name)
	if err != nil {
		core.LogWarn("%s, starting with an empty cache", err.Error())
		blob = nil
	}

	create := func(data []byte) (vk.PipelineCache, vk.Result) {
		info := vk.PipelineCacheCreateInfo{
			SType: vk.StructureTypePipelineCacheCreateInfo,
		}
		if len(data) > 0 {
			info.InitialDataSize = uint64(len(data))
			info.PInitialData = unsafe.Pointer(&data[0])
		}
		var cache vk.PipelineCache
		res := vk.CreatePipelineCache(context.Device.LogicalDevice, &info, context.Allocator, &cache)
		return cache, res
	}

	cache, res := create(blob)
	if res != vk.Success && len(blob) > 0 {
		core.LogWarn("pipeline cache %s rejected by the driver, starting empty", name)
		cache, res = create(nil)
	}
	if res != vk.Success {
		err := ResultError(fmt.Sprintf("vulkan.CreatePipelineCache(%s)", name), res)
		core.LogError(err.Error())
		return nil, err
	}
	context.Ledger.Push(LedgerPipelineCache, cache, name+" cache")
	return cache, nil
}

// PipelineCacheData reads the current blob back from the driver.
func PipelineCacheData(context *VulkanContext, cache vk.PipelineCache) ([]byte, error) {
	var size uint64
	if res := vk.GetPipelineCacheData(context.Device.LogicalDevice, cache, &size, nil); res != vk.Success {
		return nil, ResultError("vulkan.GetPipelineCacheData", res)
	}
	if size == 0 {
		return []byte{}, nil
	}
	data := make([]byte, size)
	if res := vk.GetPipelineCacheData(context.Device.LogicalDevice, cache, &size, unsafe.Pointer(&data[0])); res != vk.Success {
		return nil, ResultError("vulkan.GetPipelineCacheData", res)
	}
	return data[:size], nil
}
