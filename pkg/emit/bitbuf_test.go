package emit

import (
	"bytes"
	"math/big"
	"testing"
)

func TestBitBufSetBitsBigEndian(t *testing.T) {
	var b BitBuf
	b.SetBits(0, big.NewInt(0x33), 8)
	got := b.Bytes()
	if !bytes.Equal(got, []byte{0x33}) {
		t.Fatalf("expected [0x33], got %x", got)
	}
}

func TestBitBufGrowPadsWithZero(t *testing.T) {
	var b BitBuf
	b.SetBits(0, big.NewInt(0x55), 8)
	b.Grow(0x80)
	got := b.Bytes()
	if len(got) != 0x10 {
		t.Fatalf("expected 16 bytes after growing to 0x80 bits, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i] != 0 {
			t.Fatalf("expected zero padding at byte %d, got %x", i, got[i])
		}
	}
}

func TestBitBufSubByteField(t *testing.T) {
	var b BitBuf
	b.SetBits(0, big.NewInt(0b101), 3)
	b.SetBits(3, big.NewInt(0b11111), 5)
	got := b.Bytes()
	if !bytes.Equal(got, []byte{0b10111111}) {
		t.Fatalf("unexpected packed byte: %08b", got[0])
	}
}
