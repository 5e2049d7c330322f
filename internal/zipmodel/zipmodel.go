// Package zipmodel holds read-only knowledge of the ZIP container layout:
// the record signatures and the field offsets the mutation strategies aim at.
package zipmodel

import "bytes"

// Structural record signatures.
var (
	LocalHeaderSig     = []byte{0x50, 0x4B, 0x03, 0x04}
	CentralDirSig      = []byte{0x50, 0x4B, 0x01, 0x02}
	EndOfCentralDirSig = []byte{0x50, 0x4B, 0x05, 0x06}
	Zip64EndOfDirSig   = []byte{0x50, 0x4B, 0x06, 0x07}
	Zip64DirLocatorSig = []byte{0x50, 0x4B, 0x07, 0x08}
	DataDescriptorSig  = []byte{0x50, 0x4B, 0x08, 0x07}
)

// AllSignatures lists every structural signature, in header-injection order.
var AllSignatures = [][]byte{
	LocalHeaderSig,
	CentralDirSig,
	EndOfCentralDirSig,
	Zip64EndOfDirSig,
	Zip64DirLocatorSig,
	DataDescriptorSig,
}

// Field offsets from the start of a record signature.
const (
	MethodOffset           = 8  // compression method, local and central headers
	LocalCRCOffset         = 14 // CRC-32, local header
	CentralCRCOffset       = 16 // CRC-32, central directory entry
	CompressedSizeOffset   = 18 // compressed size, local header
	UncompressedSizeOffset = 22 // uncompressed size, local header

	LocalHeaderLen = 30 // fixed part of a local header
	CentralDirLen  = 46 // fixed part of a central directory entry
)

// FindSignatures returns the offset of every occurrence of sig in data.
func FindSignatures(data, sig []byte) []int {
	var offsets []int
	pos := 0
	for {
		idx := bytes.Index(data[pos:], sig)
		if idx < 0 {
			return offsets
		}
		offsets = append(offsets, pos+idx)
		pos += idx + 1
	}
}
