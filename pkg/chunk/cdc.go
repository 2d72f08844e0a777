package chunk

// CDC implements content-defined chunking via a 48-byte rolling Rabin
// fingerprint (spec.md §4.1). A boundary is declared when the low bits of
// the fingerprint match a fixed mask (selecting ~8 KiB average chunks) and
// the current chunk has reached at least minSize; a boundary is forced at
// maxSize regardless of the fingerprint, and the final partial chunk is
// flushed at end-of-input. Chunking is a pure function of the input bytes,
// so identical input always produces byte-identical chunks (spec.md §8).

const (
	// rabinBase is the polynomial base for the rolling fingerprint.
	rabinBase uint64 = 1000000007
)

// rabinBasePow is rabinBase^rabinWindow, precomputed for O(1) removal of the
// byte leaving the trailing edge of the window on each roll.
var rabinBasePow = func() uint64 {
	p := uint64(1)
	for i := 0; i < rabinWindow; i++ {
		p *= rabinBase
	}
	return p
}()

// CDCOptions configures content-defined chunking. Zero values select the
// spec.md §4.1 defaults.
type CDCOptions struct {
	MinSize int
	MaxSize int
}

func (o CDCOptions) normalized() CDCOptions {
	if o.MinSize <= 0 {
		o.MinSize = MinChunkSize
	}
	if o.MaxSize <= 0 {
		o.MaxSize = MaxChunkSize
	}
	if o.MinSize < MinChunkSize {
		o.MinSize = MinChunkSize
	}
	if o.MaxSize > MaxChunkSize {
		o.MaxSize = MaxChunkSize
	}
	return o
}

// CDC splits data into content-defined chunks. Each CDC chunk additionally
// carries the low 32 bits of the fingerprint at its boundary
// (Chunk.Fingerprint, Chunk.HasFingerprint) for debuggability, per spec.md §4.1.
func CDC(data []byte, opts CDCOptions) []Chunk {
	opts = opts.normalized()
	if len(data) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	var fp uint64
	windowStart := 0 // index of the oldest byte currently folded into fp

	flush := func(end int, fingerprint uint32, hasFP bool) {
		c := New(len(chunks), int64(start), data[start:end])
		c.Fingerprint = fingerprint
		c.HasFingerprint = hasFP
		chunks = append(chunks, c)
		start = end
		fp = 0
		windowStart = end
	}

	for i := 0; i < len(data); i++ {
		fp = fp*rabinBase + uint64(data[i])
		windowSize := i - windowStart + 1
		if windowSize > rabinWindow {
			oldest := data[windowStart]
			fp -= uint64(oldest) * rabinBasePow
			windowStart++
		}

		size := i - start + 1
		if size >= opts.MaxSize {
			flush(i+1, uint32(fp), true)
			continue
		}
		if size >= opts.MinSize && windowSize >= rabinWindow && uint32(fp)&rabinMask == 0 {
			flush(i+1, uint32(fp), true)
		}
	}

	if start < len(data) {
		flush(len(data), uint32(fp), true)
	}

	return chunks
}
