package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesKindSentinel(t *testing.T) {
	cause := errors.New("vkCreateBuffer returned VK_ERROR_OUT_OF_DEVICE_MEMORY")
	err := NewError(ErrorKindOutOfMemory, "vulkan.CreateBuffer", cause)

	if !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected errors.Is to match ErrOutOfMemory")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to match the wrapped cause")
	}
	if errors.Is(err, ErrDeviceLost) {
		t.Fatalf("did not expect a match on ErrDeviceLost")
	}
}

func TestKindOfWrappedError(t *testing.T) {
	inner := NewError(ErrorKindDeviceLost, "vulkan.FrameScheduler.Draw", nil)
	wrapped := fmt.Errorf("render frame 12: %w", inner)

	if got := KindOf(wrapped); got != ErrorKindDeviceLost {
		t.Fatalf("KindOf = %v, want %v", got, ErrorKindDeviceLost)
	}
	if got := KindOf(errors.New("plain")); got != ErrorKindUnknown {
		t.Fatalf("KindOf(plain) = %v, want unknown", got)
	}
}

func TestRecoverable(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{ErrorKindSwapchainOutOfDate, true},
		{ErrorKindTextureLoadFailed, true},
		{ErrorKindDeviceLost, false},
		{ErrorKindSurfaceLost, false},
		{ErrorKindTimeout, false},
		{ErrorKindShaderCompileFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", NewError(tt.kind, "op", nil))
			if got := IsRecoverable(err); got != tt.want {
				t.Errorf("IsRecoverable(%v) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	err := Errorf(ErrorKindTimeout, "vulkan.Fence.Wait", "waited %dns", 1000)
	want := "vulkan.Fence.Wait: wait timed out: waited 1000ns"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
