package chunk

import (
	"bytes"
	"fmt"
	"testing"
)

func TestFixedSizeReassembles(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 500)
	chunks := FixedSize(data, 64)
	var out []byte
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if !c.Verify() {
			t.Fatalf("chunk %d failed self-verification", i)
		}
		out = append(out, c.Data...)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("reassembled data does not match original")
	}
}

func TestCDCDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 2000)
	a := CDC(data, CDCOptions{})
	b := CDC(data, CDCOptions{})
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Hash != b[i].Hash {
			t.Fatalf("chunk %d hash differs between runs", i)
		}
		if !bytes.Equal(a[i].Data, b[i].Data) {
			t.Fatalf("chunk %d data differs between runs", i)
		}
	}
}

func TestCDCReassembles(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefghij"), 10000)
	chunks := CDC(data, CDCOptions{})
	var out []byte
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("reassembled CDC data does not match original")
	}
}

func TestCDCRespectsMinMax(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 300000)
	chunks := CDC(data, CDCOptions{MinSize: 2048, MaxSize: 65536})
	for i, c := range chunks {
		if i < len(chunks)-1 && len(c.Data) < 2048 {
			t.Fatalf("chunk %d shorter than MinSize: %d", i, len(c.Data))
		}
		if len(c.Data) > 65536 {
			t.Fatalf("chunk %d longer than MaxSize: %d", i, len(c.Data))
		}
	}
}

func TestCDCDedupSharedRun(t *testing.T) {
	var sb bytes.Buffer
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&sb, "shared-content-block-%d ", i)
	}
	shared := sb.Bytes()
	docA := append(append([]byte("prefix-A-"), shared...), []byte("-suffix-A")...)
	docB := append(append([]byte("prefix-B-different-length-"), shared...), []byte("-suffix-B")...)

	chunksA := CDC(docA, CDCOptions{})
	chunksB := CDC(docB, CDCOptions{})

	hashesA := make(map[string]bool)
	for _, c := range chunksA {
		hashesA[c.Hash] = true
	}
	sharedFound := false
	for _, c := range chunksB {
		if hashesA[c.Hash] {
			sharedFound = true
			break
		}
	}
	if !sharedFound {
		t.Fatal("expected at least one chunk hash shared between documents with a common run")
	}
}
