package vulkan

import "testing"

type destroyed struct {
	kind   LedgerKind
	handle interface{}
}

type recordingDestroyer struct {
	calls []destroyed
}

func (r *recordingDestroyer) DestroyHandle(kind LedgerKind, handle interface{}) {
	r.calls = append(r.calls, destroyed{kind, handle})
}

func TestLedgerFlushesInReverseOrder(t *testing.T) {
	rec := &recordingDestroyer{}
	l := NewLedger(rec)
	l.Push(LedgerMemory, 1, "albedo memory")
	l.Push(LedgerImage, 2, "albedo image")
	l.Push(LedgerImageView, 3, "albedo view")
	l.Push(LedgerPipeline, 4, "geometry")

	if l.Len() != 4 {
		t.Fatalf("Len = %d, want 4", l.Len())
	}
	l.Flush()

	want := []destroyed{
		{LedgerPipeline, 4},
		{LedgerImageView, 3},
		{LedgerImage, 2},
		{LedgerMemory, 1},
	}
	if len(rec.calls) != len(want) {
		t.Fatalf("got %d destroy calls, want %d", len(rec.calls), len(want))
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, rec.calls[i], want[i])
		}
	}
	if l.Len() != 0 {
		t.Fatalf("Len after flush = %d", l.Len())
	}
}

func TestLedgerFlushTwiceIsNoop(t *testing.T) {
	rec := &recordingDestroyer{}
	l := NewLedger(rec)
	l.Push(LedgerFence, 7, "upload fence")
	l.Flush()
	l.Flush()
	if len(rec.calls) != 1 {
		t.Fatalf("handle destroyed %d times, want 1", len(rec.calls))
	}
}

func TestLedgerForget(t *testing.T) {
	rec := &recordingDestroyer{}
	l := NewLedger(rec)
	l.Push(LedgerPipelineLayout, 10, "layout")
	l.Push(LedgerPipelineCache, 11, "cache")
	l.Push(LedgerPipeline, 12, "pipeline")

	if !l.Forget(11) {
		t.Fatal("Forget did not find the cache")
	}
	if l.Forget(11) {
		t.Fatal("cache forgotten twice")
	}
	entries := l.Entries()
	if len(entries) != 2 || entries[0].Handle != 10 || entries[1].Handle != 12 {
		t.Fatalf("entries after Forget = %+v", entries)
	}

	l.Flush()
	for _, c := range rec.calls {
		if c.handle == 11 {
			t.Fatal("forgotten handle was destroyed")
		}
	}
}

func TestLedgerEntriesIsACopy(t *testing.T) {
	l := NewLedger(&recordingDestroyer{})
	l.Push(LedgerSampler, 1, "linear")
	entries := l.Entries()
	entries[0].Label = "changed"
	if l.Entries()[0].Label != "linear" {
		t.Fatal("Entries exposed internal storage")
	}
}

func TestLedgerKindString(t *testing.T) {
	if LedgerDescriptorSetLayout.String() != "descriptor set layout" {
		t.Fatalf("String = %q", LedgerDescriptorSetLayout.String())
	}
	if LedgerKind(200).String() != "ledger kind 200" {
		t.Fatalf("unknown kind String = %q", LedgerKind(200).String())
	}
}
