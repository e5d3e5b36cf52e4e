package simulator

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// KeySource streams application keys on demand. NextKey must be safe to
// call from multiple worker threads and every returned key must be
// non-negative.
type KeySource interface {
	NextKey() int64
}

// KeyFileCapacity is the maximum number of keys held in one data file
// (2^30 / 32). The file source buffers one file at a time.
const KeyFileCapacity = 1 << 30 / 32

// FileKeySource replays a pre-generated key stream stored in numbered
// files "data-0", "data-1", ... under a directory. Files are ASCII,
// one non-negative decimal integer per whitespace-separated token, read
// sequentially with no seeking.
//
// A single mutex serializes the cursor advance and the refill; worker
// threads suspend here and nowhere else inside a tick.
type FileKeySource struct {
	mu   sync.Mutex
	dir  string
	fid  int
	keys []int64
	pos  int
}

// NewFileKeySource creates a file-backed key source rooted at dir.
// The first file is opened lazily on the first NextKey call.
func NewFileKeySource(dir string) *FileKeySource {
	return &FileKeySource{dir: dir}
}

// NextKey returns the next key in the stream, refilling from the next
// numbered file when the buffered one is exhausted. A missing file, a
// non-integer token or a negative value is fatal: a corrupt key stream
// invalidates the experiment.
func (s *FileKeySource) NextKey() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.keys) {
		s.refill()
	}
	k := s.keys[s.pos]
	s.pos++
	return k
}

func (s *FileKeySource) refill() {
	name := filepath.Join(s.dir, fmt.Sprintf("data-%d", s.fid))
	f, err := os.Open(name)
	if err != nil {
		panic(SimError{Message: fmt.Sprintf("key source: open %s: %v", name, err)})
	}
	defer f.Close()

	keys := s.keys[:0]
	if cap(keys) == 0 {
		keys = make([]int64, 0, 4096)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 64*1024)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		v, err := strconv.ParseInt(sc.Text(), 10, 64)
		if err != nil {
			panic(ErrKeySource(name, len(keys), fmt.Sprintf("%q is not an integer", sc.Text())))
		}
		if v < 0 {
			panic(ErrKeySource(name, len(keys), fmt.Sprintf("negative key %d", v)))
		}
		keys = append(keys, v)
		if len(keys) > KeyFileCapacity {
			panic(ErrKeySource(name, len(keys), fmt.Sprintf("file exceeds %d keys", KeyFileCapacity)))
		}
	}
	if err := sc.Err(); err != nil {
		panic(SimError{Message: fmt.Sprintf("key source: read %s: %v", name, err)})
	}
	if len(keys) == 0 {
		panic(SimError{Message: fmt.Sprintf("key source: %s holds no keys", name)})
	}
	s.keys = keys
	s.pos = 0
	s.fid++
}

// RandomKeySource draws keys from a seeded generator so the simulator
// can run without pre-generated data files. The same seed yields the
// same stream, preserving run-to-run determinism under one thread.
type RandomKeySource struct {
	mu       sync.Mutex
	rng      *rand.Rand
	keySpace int64
	dist     KeyDistribution
	geomP    float64
}

// NewRandomKeySource creates a synthetic source over [0, keySpace)
func NewRandomKeySource(seed, keySpace int64, dist KeyDistribution, geomP float64) *RandomKeySource {
	return &RandomKeySource{
		rng:      rand.New(rand.NewSource(seed)),
		keySpace: keySpace,
		dist:     dist,
		geomP:    geomP,
	}
}

// NextKey returns the next synthetic key
func (s *RandomKeySource) NextKey() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.dist {
	case KeyDistGeometric:
		// Skewed toward small keys: hot keys repeat often, which is
		// what gives in-buffer compaction something to merge.
		k := int64(0)
		for s.rng.Float64() > s.geomP && k < s.keySpace-1 {
			k++
		}
		return k
	default:
		return s.rng.Int63n(s.keySpace)
	}
}

// SequenceKeySource replays a fixed in-memory sequence, wrapping around
// when exhausted. Intended for tests that need exact key placement.
type SequenceKeySource struct {
	mu   sync.Mutex
	keys []int64
	pos  int
}

// NewSequenceKeySource creates a source over the given keys
func NewSequenceKeySource(keys []int64) *SequenceKeySource {
	if len(keys) == 0 {
		panic(SimError{Message: "key source: empty sequence"})
	}
	for i, k := range keys {
		if k < 0 {
			panic(ErrKeySource("sequence", i, fmt.Sprintf("negative key %d", k)))
		}
	}
	return &SequenceKeySource{keys: keys}
}

// NextKey returns the next key in the sequence
func (s *SequenceKeySource) NextKey() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.keys[s.pos]
	s.pos = (s.pos + 1) % len(s.keys)
	return k
}
