package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/umbra/engine/core"
)

func attachmentWithViews(n int, depth bool, label string) *Attachment {
	format := vk.FormatR16g16b16a16Sfloat
	if depth {
		format = vk.FormatD32Sfloat
	}
	return &Attachment{
		Views:  make([]vk.ImageView, n),
		Format: format,
		Depth:  depth,
		Label:  label,
	}
}

func gbuffer(t *testing.T) *VulkanFramebuffer {
	t.Helper()
	fb := NewVulkanFramebuffer(vk.Extent2D{Width: 1280, Height: 720})
	for _, name := range []string{"position", "normal", "albedo"} {
		if err := fb.addAttachment(attachmentWithViews(FrameOverlap, false, name)); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	if err := fb.addAttachment(attachmentWithViews(FrameOverlap, true, "depth")); err != nil {
		t.Fatalf("add depth: %v", err)
	}
	return fb
}

func TestDepthAttachmentIsLastAndOnlyDepthReference(t *testing.T) {
	fb := gbuffer(t)

	if !fb.HasDepth() {
		t.Fatal("framebuffer should report a depth attachment")
	}
	depth := fb.DepthReference()
	if depth == nil || depth.Attachment != 3 {
		t.Fatalf("depth reference = %+v, want attachment 3", depth)
	}
	if depth.Layout != vk.ImageLayoutDepthStencilAttachmentOptimal {
		t.Errorf("depth reference layout = %d", depth.Layout)
	}

	colors := fb.ColorReferences()
	if len(colors) != 3 || fb.ColorAttachmentCount() != 3 {
		t.Fatalf("got %d colour references, want 3", len(colors))
	}
	for i, ref := range colors {
		if ref.Attachment != uint32(i) {
			t.Errorf("colour reference %d points at %d", i, ref.Attachment)
		}
		if ref.Layout != vk.ImageLayoutColorAttachmentOptimal {
			t.Errorf("colour reference %d layout = %d", i, ref.Layout)
		}
	}
}

func TestAttachmentAfterDepthFails(t *testing.T) {
	fb := gbuffer(t)

	err := fb.addAttachment(attachmentWithViews(FrameOverlap, false, "late"))
	if !errors.Is(err, core.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if len(fb.Attachments) != 4 {
		t.Errorf("rejected attachment was kept: %d attachments", len(fb.Attachments))
	}
}

func TestInstanceCountMismatchFails(t *testing.T) {
	fb := NewVulkanFramebuffer(vk.Extent2D{Width: 64, Height: 64})
	if err := fb.addAttachment(attachmentWithViews(3, false, "a")); err != nil {
		t.Fatal(err)
	}
	if err := fb.addAttachment(attachmentWithViews(2, false, "b")); !errors.Is(err, core.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if fb.Instances() != 3 {
		t.Errorf("instances = %d", fb.Instances())
	}
}

func TestAttachmentFinalLayouts(t *testing.T) {
	fb := NewVulkanFramebuffer(vk.Extent2D{Width: 64, Height: 64})
	if err := fb.addAttachment(attachmentWithViews(2, false, "owned")); err != nil {
		t.Fatal(err)
	}
	if err := fb.AddExternalAttachment(make([]vk.ImageView, 2), vk.FormatB8g8r8a8Unorm); err != nil {
		t.Fatal(err)
	}
	if err := fb.addAttachment(attachmentWithViews(2, true, "depth")); err != nil {
		t.Fatal(err)
	}

	want := []vk.ImageLayout{
		vk.ImageLayoutShaderReadOnlyOptimal,
		vk.ImageLayoutPresentSrc,
		vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	for i, d := range fb.AttachmentDescriptions() {
		if d.FinalLayout != want[i] {
			t.Errorf("attachment %d final layout = %d, want %d", i, d.FinalLayout, want[i])
		}
		if d.InitialLayout != vk.ImageLayoutUndefined || d.LoadOp != vk.AttachmentLoadOpClear {
			t.Errorf("attachment %d = %+v", i, d)
		}
	}
	if n := len(fb.ClearValues()); n != 3 {
		t.Errorf("got %d clear values, want 3", n)
	}
}

func TestFramebufferWithoutDepth(t *testing.T) {
	fb := NewVulkanFramebuffer(vk.Extent2D{Width: 64, Height: 64})
	if err := fb.AddExternalAttachment(make([]vk.ImageView, 3), vk.FormatB8g8r8a8Unorm); err != nil {
		t.Fatal(err)
	}
	if fb.DepthReference() != nil {
		t.Error("unexpected depth reference")
	}
	if len(fb.subpassDependencies()) != 2 {
		t.Error("expected an incoming and an outgoing dependency")
	}
}
