// Package hasher provides xxHash64 fingerprints for reference images and
// written frames.
package hasher

import (
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint identifies a reference image at a given grid geometry. Two
// references with the same fingerprint produce the same index.
func Fingerprint(width, height, blockSize int, pix []byte) uint64 {
	var hdr [24]byte
	binary.LittleEndian.PutUint64(hdr[0:], uint64(width))
	binary.LittleEndian.PutUint64(hdr[8:], uint64(height))
	binary.LittleEndian.PutUint64(hdr[16:], uint64(blockSize))

	d := xxhash.New()
	d.Write(hdr[:])
	d.Write(pix)
	return d.Sum64()
}

// ContentHash computes the xxHash64 of data and returns a hex string
// truncated to the given length.
func ContentHash(data []byte, hexLen int) string {
	return truncHex(xxhash.Sum64(data), hexLen)
}

// ContentHashReader computes xxHash64 from a reader, streaming.
func ContentHashReader(r io.Reader, hexLen int) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return truncHex(h.Sum64(), hexLen), nil
}

func truncHex(v uint64, hexLen int) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	full := hex.EncodeToString(b[:])
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}
