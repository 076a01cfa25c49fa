package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"os"
)

// SampleSize is the width of each hashed window.
const SampleSize = 64 * 1024

// ComputeExact returns the sampled SHA-256 digest of the file at ref as
// lowercase hex. When the file's length cannot be determined, sizeHint is
// used instead. Any failure yields "", false.
func ComputeExact(ref string, sizeHint int64) (digest string, ok bool) {
	defer func() {
		if recover() != nil {
			digest, ok = "", false
		}
	}()

	path, err := PathFromURI(ref)
	if err != nil {
		return "", false
	}
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	length := int64(-1)
	if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
		length = info.Size()
	}
	if length <= 0 {
		length = sizeHint
	}

	h := sha256.New()
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(max(length, 0)))
	h.Write(prefix[:])

	buf := make([]byte, SampleSize)
	for _, offset := range windowOffsets(length) {
		n, err := f.ReadAt(buf, offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", false
		}
		h.Write(buf[:n])
	}
	return hex.EncodeToString(h.Sum(nil)), true
}

// windowOffsets returns the start offsets of the hashed windows for a file of
// the given length: one window for files up to SampleSize, otherwise start,
// middle, and end.
func windowOffsets(length int64) []int64 {
	if length <= SampleSize {
		return []int64{0}
	}
	mid := max(0, length/2-SampleSize/2)
	end := max(0, length-SampleSize)
	return []int64{0, mid, end}
}
