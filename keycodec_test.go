package isam

import "testing"

func charKD(descending bool) *KeyDescriptor {
	return &KeyDescriptor{Parts: []KeyPart{{Start: 0, Length: 8, Type: CharType, Descending: descending}}}
}

func TestCompareKeysChar(t *testing.T) {
	kd := charKD(false)
	a := []byte("aaaaaaaa")
	b := []byte("bbbbbbbb")
	if compareKeys(a, b, kd) >= 0 {
		t.Fatalf("expected a < b")
	}
	if compareKeys(b, a, kd) <= 0 {
		t.Fatalf("expected b > a")
	}
	if compareKeys(a, a, kd) != 0 {
		t.Fatalf("expected equal keys to compare 0")
	}
}

func TestCompareKeysDescending(t *testing.T) {
	kd := charKD(true)
	a := []byte("aaaaaaaa")
	b := []byte("bbbbbbbb")
	if compareKeys(a, b, kd) <= 0 {
		t.Fatalf("descending part should reverse the comparison")
	}
}

func TestCompareKeysTyped(t *testing.T) {
	kd := &KeyDescriptor{Parts: []KeyPart{{Start: 0, Length: 8, Type: Int64Type}}}
	a := make([]byte, 8)
	b := make([]byte, 8)
	putInt64(a, -5)
	putInt64(b, 5)
	if compareKeys(a, b, kd) >= 0 {
		t.Fatalf("expected -5 < 5 under Int64Type comparison")
	}
}

func TestIsAllNullFill(t *testing.T) {
	kd := &KeyDescriptor{
		Flags: NullKey,
		Parts: []KeyPart{{Start: 0, Length: 4, Type: CharType, NullFill: ' '}},
	}
	if !isAllNullFill([]byte("    "), kd) {
		t.Fatalf("all-space key should be treated as NULL_KEY")
	}
	if isAllNullFill([]byte("   x"), kd) {
		t.Fatalf("non-fill key must not be elided")
	}
	kd.Flags = 0
	if isAllNullFill([]byte("    "), kd) {
		t.Fatalf("NULL_KEY elision must not apply when the flag is unset")
	}
}

func TestExtremalKeyOrdering(t *testing.T) {
	kd := &KeyDescriptor{Parts: []KeyPart{{Start: 0, Length: 8, Type: Int64Type}}}
	low := extremalKey(kd, true)
	high := extremalKey(kd, false)
	if compareKeys(low, high, kd) >= 0 {
		t.Fatalf("FIRST extremal key must sort before LAST extremal key")
	}
	// A signed part's extremes must bound negative values too, not
	// just stop at zero.
	neg := make([]byte, 8)
	putInt64(neg, -42)
	if compareKeys(low, neg, kd) > 0 {
		t.Fatalf("FIRST extremal key sorts after a negative key")
	}
	if compareKeys(neg, high, kd) > 0 {
		t.Fatalf("a negative key sorts after the LAST extremal key")
	}
}

func TestKeyDescriptorValidate(t *testing.T) {
	if err := (&KeyDescriptor{Parts: nil}).validate(); err == nil {
		t.Fatalf("expected ErrBadKey for zero parts")
	}
	tooMany := make([]KeyPart, maxKeyParts+1)
	for i := range tooMany {
		tooMany[i] = KeyPart{Start: i, Length: 1, Type: CharType}
	}
	if err := (&KeyDescriptor{Parts: tooMany}).validate(); err == nil {
		t.Fatalf("expected ErrBadKey for too many parts")
	}
	if err := charKD(false).validate(); err != nil {
		t.Fatalf("valid descriptor should pass: %v", err)
	}
}

func TestBuildKeyShortRow(t *testing.T) {
	kd := &KeyDescriptor{Parts: []KeyPart{{Start: 4, Length: 4, Type: CharType}}}
	key := buildKey([]byte("ab"), kd)
	if len(key) != 4 {
		t.Fatalf("expected zero-padded 4-byte key, got %d bytes", len(key))
	}
}
