package isam

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func newTestVarlen(t *testing.T) (*varlenStore, *Dictionary) {
	t.Helper()
	cfg := &Config{BuildMode: Mode64, NodeSize: NodeSize64}
	dict := &Dictionary{IndexNodeCount: 10}
	f, err := os.Create(filepath.Join(t.TempDir(), "idx"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	cache := newBlockCache(f, cfg.NodeSize, 16)
	return newVarlenStore(cache, cfg, dict), dict
}

func TestVarlenWriteReadRoundTrip(t *testing.T) {
	v, _ := newTestVarlen(t)
	payload := bytes.Repeat([]byte("x"), 500) // too big for the 32..256-byte slots: one 512-byte slot

	head, err := v.Write(payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if head == 0 {
		t.Fatalf("expected non-zero head for a non-empty payload")
	}
	got, err := v.Read(head, len(payload))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestVarlenEmptyTail(t *testing.T) {
	v, _ := newTestVarlen(t)
	head, err := v.Write(nil)
	if err != nil || head != 0 {
		t.Fatalf("empty tail should return head=0, nil; got %d, %v", head, err)
	}
}

func TestVarlenFreeThenReuse(t *testing.T) {
	v, _ := newTestVarlen(t)
	payload := []byte("short tail")

	head, err := v.Write(payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := v.Free(head, len(payload)); err != nil {
		t.Fatalf("Free: %v", err)
	}
	// The freed slot should be handed back out by the next allocation in
	// the same bucket rather than growing the node count.
	before := v.dict.IndexNodeCount
	head2, err := v.Write([]byte("another short one"))
	if err != nil {
		t.Fatalf("Write after free: %v", err)
	}
	if head2 != head {
		t.Fatalf("expected the freed slot %d to be reused, got %d", head, head2)
	}
	if v.dict.IndexNodeCount != before {
		t.Fatalf("reusing a freed slot should not allocate a new node")
	}
}

func TestBucketFor(t *testing.T) {
	cases := []struct{ n, want int }{
		{1, 0}, {32, 0}, {33, 1}, {64, 1}, {65, 2},
	}
	for _, c := range cases {
		if got := bucketFor(c.n, bucketCount64); got != c.want {
			t.Fatalf("bucketFor(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}
