package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

func TestResultErrorKinds(t *testing.T) {
	tests := []struct {
		result vk.Result
		kind   core.ErrorKind
		target error
	}{
		{vk.ErrorOutOfDate, core.ErrorKindSwapchainOutOfDate, core.ErrSwapchainOutOfDate},
		{vk.ErrorSurfaceLost, core.ErrorKindSurfaceLost, core.ErrSurfaceLost},
		{vk.ErrorDeviceLost, core.ErrorKindDeviceLost, core.ErrDeviceLost},
		{vk.Timeout, core.ErrorKindTimeout, core.ErrTimeout},
		{vk.ErrorOutOfHostMemory, core.ErrorKindOutOfMemory, core.ErrOutOfMemory},
		{vk.ErrorOutOfDeviceMemory, core.ErrorKindOutOfMemory, core.ErrOutOfMemory},
		{vk.ErrorInitializationFailed, core.ErrorKindResourceCreation, core.ErrResourceCreation},
	}
	for _, tt := range tests {
		t.Run(VulkanResultString(tt.result), func(t *testing.T) {
			err := ResultError("test", tt.result)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := core.KindOf(err); got != tt.kind {
				t.Fatalf("kind = %s, want %s", got, tt.kind)
			}
			if !errors.Is(err, tt.target) {
				t.Fatalf("errors.Is(%v, %v) = false", err, tt.target)
			}
		})
	}
}

func TestResultErrorSuccessCodes(t *testing.T) {
	for _, res := range []vk.Result{vk.Success, vk.Suboptimal} {
		if err := ResultError("test", res); err != nil {
			t.Fatalf("ResultError(%s) = %v, want nil", VulkanResultString(res), err)
		}
	}
}

func TestOnlyOutOfDateIsRecoverable(t *testing.T) {
	if !core.IsRecoverable(ResultError("acquire", vk.ErrorOutOfDate)) {
		t.Fatal("out of date swapchain should be recoverable")
	}
	if core.IsRecoverable(ResultError("submit", vk.ErrorDeviceLost)) {
		t.Fatal("device loss should not be recoverable")
	}
}

func TestVulkanSafeStrings(t *testing.T) {
	in := []string{"VK_KHR_surface", "already\x00", ""}
	out := VulkanSafeStrings(in)
	want := []string{"VK_KHR_surface\x00", "already\x00", "\x00"}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %q, want %q", i, out[i], want[i])
		}
	}
	if in[0] != "VK_KHR_surface" {
		t.Fatal("input slice was modified")
	}
}

func TestFixedString(t *testing.T) {
	var name [16]byte
	copy(name[:], "VK_LAYER")
	if got := fixedString(name[:]); got != "VK_LAYER" {
		t.Fatalf("fixedString = %q", got)
	}
	full := []byte("ABCD")
	if got := fixedString(full); got != "ABCD" {
		t.Fatalf("fixedString without terminator = %q", got)
	}
}
