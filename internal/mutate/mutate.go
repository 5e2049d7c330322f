// Package mutate implements the structural corruption strategies applied to
// candidate archives. Every strategy works on a private copy of its input
// and keeps all field arithmetic inside buffer bounds.
package mutate

import (
	"encoding/binary"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"zipfuzz/internal/zipmodel"
)

// Strategy identifies one corruption strategy from the closed set.
type Strategy int

const (
	CorruptLocalHeaders Strategy = iota + 1
	CorruptCentralDirectory
	MutateCompressionMethods
	CorruptChecksums
	MutateFileSizes
	InjectHeaders
	BitFlip
	BoundaryValues
	RepeatBytes
	Arithmetic

	numStrategies = 10
)

var strategyNames = map[Strategy]string{
	CorruptLocalHeaders:      "corrupt_local_headers",
	CorruptCentralDirectory:  "corrupt_central_directory",
	MutateCompressionMethods: "mutate_compression_methods",
	CorruptChecksums:         "corrupt_checksums",
	MutateFileSizes:          "mutate_file_sizes",
	InjectHeaders:            "inject_headers",
	BitFlip:                  "bit_flip",
	BoundaryValues:           "boundary_values",
	RepeatBytes:              "repeat_bytes",
	Arithmetic:               "arithmetic",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return "unknown"
}

// compressionMethods holds plausible and implausible method codes: stored,
// deflate, deflate64, bzip2, lzma, and a few out-of-range values.
var compressionMethods = []byte{0, 1, 8, 9, 12, 14, 96, 99, 255}

var boundaryValues = []uint32{0x00, 0xFF, 0x7F, 0x80, 0xFFFF, 0xFFFFFFFF}

type Engine struct {
	rng    *rand.Rand
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	return NewEngineWithRand(logger, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewEngineWithRand builds an engine over a caller-owned random source, so
// tests can pin the strategy draw.
func NewEngineWithRand(logger *zap.Logger, rng *rand.Rand) *Engine {
	return &Engine{rng: rng, logger: logger}
}

// Mutate applies exactly one uniformly chosen strategy to a copy of data and
// returns the corrupted copy along with the strategy used. An empty input is
// returned unchanged. A strategy failure falls back to the bit-flip strategy
// rather than surfacing an error.
func (e *Engine) Mutate(data []byte) ([]byte, Strategy) {
	if len(data) == 0 {
		return data, 0
	}

	strategy := Strategy(e.rng.Intn(numStrategies) + 1)
	out := e.applySafe(strategy, data)
	return out, strategy
}

// Apply runs one specific strategy against a copy of data, with the same
// fallback guarantee as Mutate.
func (e *Engine) Apply(strategy Strategy, data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	return e.applySafe(strategy, data)
}

func (e *Engine) applySafe(strategy Strategy, data []byte) (out []byte) {
	buf := append([]byte(nil), data...)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("mutation failed, using bit flip fallback",
				zap.Stringer("strategy", strategy), zap.Any("panic", r))
			out = e.bitFlip(append([]byte(nil), data...))
		}
	}()

	switch strategy {
	case CorruptLocalHeaders:
		return e.corruptLocalHeaders(buf)
	case CorruptCentralDirectory:
		return e.corruptCentralDirectory(buf)
	case MutateCompressionMethods:
		return e.mutateCompressionMethods(buf)
	case CorruptChecksums:
		return e.corruptChecksums(buf)
	case MutateFileSizes:
		return e.mutateFileSizes(buf)
	case InjectHeaders:
		return e.injectHeaders(buf)
	case BitFlip:
		return e.bitFlip(buf)
	case BoundaryValues:
		return e.boundaryValues(buf)
	case RepeatBytes:
		return e.repeatBytes(buf)
	default:
		return e.arithmetic(buf)
	}
}

// corruptLocalHeaders scribbles over the fixed fields trailing every local
// header signature, each byte with probability 0.4.
func (e *Engine) corruptLocalHeaders(data []byte) []byte {
	for _, pos := range zipmodel.FindSignatures(data, zipmodel.LocalHeaderSig) {
		headerSize := min(zipmodel.LocalHeaderLen, len(data)-pos)
		for i := 4; i < headerSize; i++ {
			if e.rng.Float64() < 0.4 {
				data[pos+i] = byte(e.rng.Intn(256))
			}
		}
	}
	return data
}

// corruptCentralDirectory does the same for central directory entries, each
// byte with probability 0.3.
func (e *Engine) corruptCentralDirectory(data []byte) []byte {
	for _, pos := range zipmodel.FindSignatures(data, zipmodel.CentralDirSig) {
		headerSize := min(zipmodel.CentralDirLen, len(data)-pos)
		for i := 4; i < headerSize; i++ {
			if e.rng.Float64() < 0.3 {
				data[pos+i] = byte(e.rng.Intn(256))
			}
		}
	}
	return data
}

func (e *Engine) mutateCompressionMethods(data []byte) []byte {
	for _, sig := range [][]byte{zipmodel.LocalHeaderSig, zipmodel.CentralDirSig} {
		for _, pos := range zipmodel.FindSignatures(data, sig) {
			if pos+zipmodel.MethodOffset < len(data) {
				data[pos+zipmodel.MethodOffset] = compressionMethods[e.rng.Intn(len(compressionMethods))]
			}
		}
	}
	return data
}

func (e *Engine) corruptChecksums(data []byte) []byte {
	headers := []struct {
		sig       []byte
		crcOffset int
	}{
		{zipmodel.LocalHeaderSig, zipmodel.LocalCRCOffset},
		{zipmodel.CentralDirSig, zipmodel.CentralCRCOffset},
	}
	for _, hdr := range headers {
		for _, pos := range zipmodel.FindSignatures(data, hdr.sig) {
			if pos+hdr.crcOffset+4 > len(data) {
				continue
			}
			for i := 0; i < 4; i++ {
				data[pos+hdr.crcOffset+i] = byte(e.rng.Intn(256))
			}
		}
	}
	return data
}

// mutateFileSizes rewrites the compressed and uncompressed size fields of
// local headers with random 32-bit values, skipping headers that start
// within the stride of the previous one.
func (e *Engine) mutateFileSizes(data []byte) []byte {
	next := 0
	for _, pos := range zipmodel.FindSignatures(data, zipmodel.LocalHeaderSig) {
		if pos < next {
			continue
		}
		for _, offset := range []int{zipmodel.CompressedSizeOffset, zipmodel.UncompressedSizeOffset} {
			if pos+offset+4 > len(data) {
				continue
			}
			binary.LittleEndian.PutUint32(data[pos+offset:], e.rng.Uint32())
		}
		next = pos + zipmodel.LocalHeaderLen + 1
	}
	return data
}

// injectHeaders grows small buffers by splicing in a random structural
// signature followed by 10-100 bytes of random payload.
func (e *Engine) injectHeaders(data []byte) []byte {
	if len(data) >= 5000 {
		return data
	}

	header := zipmodel.AllSignatures[e.rng.Intn(len(zipmodel.AllSignatures))]
	position := e.rng.Intn(len(data) + 1)
	extra := make([]byte, 10+e.rng.Intn(91))
	e.rng.Read(extra)

	out := make([]byte, 0, len(data)+len(header)+len(extra))
	out = append(out, data[:position]...)
	out = append(out, header...)
	out = append(out, extra...)
	out = append(out, data[position:]...)
	return out
}

// bitFlip flips one random bit in each of 1..min(100, len/10) distinct byte
// positions. This is also the fallback when another strategy fails.
func (e *Engine) bitFlip(data []byte) []byte {
	upper := min(100, len(data)/10)
	if upper < 1 {
		upper = 1
	}
	numMutations := 1 + e.rng.Intn(upper)

	positions := e.rng.Perm(len(data))
	if numMutations > len(positions) {
		numMutations = len(positions)
	}
	for _, pos := range positions[:numMutations] {
		data[pos] ^= 1 << e.rng.Intn(8)
	}
	return data
}

// boundaryValues overwrites 1..20 random positions with boundary constants,
// either a single low byte or a little-endian packed run.
func (e *Engine) boundaryValues(data []byte) []byte {
	if len(data) <= 10 {
		return data
	}

	numMutations := 1 + e.rng.Intn(20)
	for i := 0; i < numMutations; i++ {
		pos := e.rng.Intn(len(data))
		value := boundaryValues[e.rng.Intn(len(boundaryValues))]
		if e.rng.Float64() < 0.3 {
			data[pos] = byte(value)
			continue
		}
		if len(data)-pos < 2 {
			continue
		}
		length := 2 + e.rng.Intn(min(8, len(data)-pos)-1)
		var packed [4]byte
		binary.LittleEndian.PutUint32(packed[:], value)
		copy(data[pos:pos+length], packed[:])
	}
	return data
}

func (e *Engine) repeatBytes(data []byte) []byte {
	if len(data) <= 20 {
		return data
	}

	pattern := byte(e.rng.Intn(256))
	start := e.rng.Intn(len(data) - 9)
	length := 5 + e.rng.Intn(min(50, len(data)-start)-4)
	for i := start; i < start+length; i++ {
		data[i] = pattern
	}
	return data
}

func (e *Engine) arithmetic(data []byte) []byte {
	if len(data) <= 10 {
		return data
	}

	pos := e.rng.Intn(len(data))
	value := byte(1 + e.rng.Intn(255))
	switch e.rng.Intn(3) {
	case 0:
		data[pos] += value
	case 1:
		data[pos] -= value
	default:
		data[pos] *= value
	}
	return data
}
