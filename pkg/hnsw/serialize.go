package hnsw

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Persistence format (spec.md §4.2): params, entry point, then per node
// {id, embedding, layer, connections[layer] -> id[]}. All integers are
// little-endian uint32/uint64; strings are length-prefixed UTF-8;
// embeddings are f32[D] little-endian, matching the compatibility-critical
// encoding spec.md §6 mandates for stored embeddings generally.
const magic uint32 = 0x484e5357 // "HNSW"

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// Save writes the index state to w: config, entry point, and every live
// node's id, embedding, level, and per-level neighbor lists. Tombstoned
// nodes, and neighbor references to them, are not written.
func (idx *Index) Save(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, magic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(idx.dimensions)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(idx.config.M)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(idx.config.EfConstruction)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(idx.config.EfSearch)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, math.Float64bits(idx.config.LevelMultiplier)); err != nil {
		return err
	}
	if err := writeString(bw, idx.entryPoint); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(idx.maxLevel)); err != nil {
		return err
	}

	live := make([]*node, 0, len(idx.nodes)-idx.tombstoneCount)
	for _, n := range idx.nodes {
		if !n.tombstone {
			live = append(live, n)
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(live))); err != nil {
		return err
	}

	for _, n := range live {
		if err := writeString(bw, n.id); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(n.level)); err != nil {
			return err
		}
		for _, f := range n.vector {
			if err := binary.Write(bw, binary.LittleEndian, math.Float32bits(f)); err != nil {
				return err
			}
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(n.neighbors))); err != nil {
			return err
		}
		for _, level := range n.neighbors {
			kept := make([]string, 0, len(level))
			for _, nbID := range level {
				if nb, ok := idx.nodes[nbID]; ok && !nb.tombstone {
					kept = append(kept, nbID)
				}
			}
			if err := binary.Write(bw, binary.LittleEndian, uint32(len(kept))); err != nil {
				return err
			}
			for _, nbID := range kept {
				if err := writeString(bw, nbID); err != nil {
					return err
				}
			}
		}
	}

	return bw.Flush()
}

// Load reconstructs an index from r, as written by Save. Corruption (a
// truncated stream, bad magic, or a dimension mismatch) surfaces as an
// error; callers may fall back to a fresh empty index per spec.md §4.2.
func Load(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)

	var gotMagic uint32
	if err := binary.Read(br, binary.LittleEndian, &gotMagic); err != nil {
		return nil, fmt.Errorf("hnsw: reading magic: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("hnsw: bad magic %x", gotMagic)
	}

	var dims, m, efc, efs uint32
	var mlBits uint64
	if err := binary.Read(br, binary.LittleEndian, &dims); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &m); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &efc); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &efs); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &mlBits); err != nil {
		return nil, err
	}

	entryPoint, err := readString(br)
	if err != nil {
		return nil, err
	}
	var maxLevel uint32
	if err := binary.Read(br, binary.LittleEndian, &maxLevel); err != nil {
		return nil, err
	}

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	idx := New(int(dims), Config{
		M:               int(m),
		EfConstruction:  int(efc),
		EfSearch:        int(efs),
		LevelMultiplier: math.Float64frombits(mlBits),
	})
	idx.entryPoint = entryPoint
	idx.maxLevel = int(maxLevel)

	for i := uint32(0); i < count; i++ {
		id, err := readString(br)
		if err != nil {
			return nil, fmt.Errorf("hnsw: reading node %d id: %w", i, err)
		}
		var level uint32
		if err := binary.Read(br, binary.LittleEndian, &level); err != nil {
			return nil, err
		}
		vec := make([]float32, dims)
		for j := range vec {
			var bits uint32
			if err := binary.Read(br, binary.LittleEndian, &bits); err != nil {
				return nil, fmt.Errorf("hnsw: reading node %d embedding: %w", i, err)
			}
			vec[j] = math.Float32frombits(bits)
		}
		var numLevels uint32
		if err := binary.Read(br, binary.LittleEndian, &numLevels); err != nil {
			return nil, err
		}
		neighbors := make([][]string, numLevels)
		for l := range neighbors {
			var numNb uint32
			if err := binary.Read(br, binary.LittleEndian, &numNb); err != nil {
				return nil, err
			}
			level := make([]string, numNb)
			for k := range level {
				nbID, err := readString(br)
				if err != nil {
					return nil, fmt.Errorf("hnsw: reading node %d neighbor: %w", i, err)
				}
				level[k] = nbID
			}
			neighbors[l] = level
		}
		idx.nodes[id] = &node{id: id, vector: vec, level: int(level), neighbors: neighbors}
	}

	if entryPoint != "" {
		if _, ok := idx.nodes[entryPoint]; !ok {
			return nil, fmt.Errorf("hnsw: entry point %q not found among loaded nodes", entryPoint)
		}
	}

	return idx, nil
}
