// Package fingerprint provides the non-cryptographic digests used for quick
// fingerprints, full-file digests and directory signatures.
//
// The mixing function is FNV-1a over 64 bits with the offset basis
// 1469598103934665603 carried over from earlier releases. That basis differs
// from the canonical FNV value, so hash/fnv cannot be substituted without
// changing every digest this tool has ever reported.
//
// Every positive file match is confirmed byte-for-byte (Equal), so collision
// resistance is not required from the digest itself.
package fingerprint

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
)

const (
	offset64 = 1469598103934665603
	prime64  = 1099511628211

	// bufSize is the read buffer size for file hashing and comparison (1 MiB).
	bufSize = 1 << 20
)

// Digest is a streaming FNV-1a 64-bit digest. The zero value is not valid;
// use New.
type Digest struct {
	h uint64
}

// New returns a Digest initialized to the offset basis.
func New() *Digest { return &Digest{h: offset64} }

// Write folds p into the digest byte by byte (XOR then multiply).
// It never fails; the error is present to satisfy io.Writer.
func (d *Digest) Write(p []byte) (int, error) {
	h := d.h
	for _, b := range p {
		h ^= uint64(b)
		h *= prime64
	}
	d.h = h
	return len(p), nil
}

// WriteUint64 folds v as 8 little-endian bytes. Used to mix lengths and
// counts into multi-item summaries.
func (d *Digest) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, _ = d.Write(b[:])
}

// WriteString folds s without copying it to a byte slice first.
func (d *Digest) WriteString(s string) {
	h := d.h
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	d.h = h
}

// Sum64 returns the current digest value. The digest remains usable.
func (d *Digest) Sum64() uint64 { return d.h }

// File streams the entire file content through a Digest and returns the
// full-content digest.
func File(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	d := New()
	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(d, f, buf); err != nil {
		return 0, err
	}
	return d.Sum64(), nil
}

// Quick computes the cheap fingerprint over the file size, the first chunk
// bytes and the last chunk bytes. Files no larger than chunk are covered by
// the head read alone; for sizes between chunk and 2*chunk the head and tail
// reads overlap, which is fine since the fold is deterministic either way.
func Quick(path string, size, chunk int64) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	d := New()
	d.WriteUint64(uint64(size))

	head := min(chunk, size)
	buf := make([]byte, head)
	if head > 0 {
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		_, _ = d.Write(buf[:n])
	}

	if size > chunk {
		buf = buf[:chunk]
		if _, err := f.Seek(size-chunk, io.SeekStart); err != nil {
			return 0, err
		}
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		_, _ = d.Write(buf[:n])
	}

	return d.Sum64(), nil
}

// Equal reports whether two files have byte-identical content. This is the
// confirmation primitive guarding against digest collisions: a size check
// first, then a buffered byte-for-byte comparison.
func Equal(pathA, pathB string) (bool, error) {
	ia, err := os.Stat(pathA)
	if err != nil {
		return false, err
	}
	ib, err := os.Stat(pathB)
	if err != nil {
		return false, err
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}

	fa, err := os.Open(pathA)
	if err != nil {
		return false, err
	}
	defer func() { _ = fa.Close() }()
	fb, err := os.Open(pathB)
	if err != nil {
		return false, err
	}
	defer func() { _ = fb.Close() }()

	ba := make([]byte, bufSize)
	bb := make([]byte, bufSize)
	for {
		na, errA := io.ReadFull(fa, ba)
		nb, errB := io.ReadFull(fb, bb)
		if na != nb {
			return false, nil
		}
		if na > 0 && !bytes.Equal(ba[:na], bb[:nb]) {
			return false, nil
		}
		if errA == io.EOF && errB == io.EOF {
			return true, nil
		}
		for _, e := range []error{errA, errB} {
			if e != nil && e != io.EOF && e != io.ErrUnexpectedEOF {
				return false, e
			}
		}
		if na < bufSize {
			// Both hit EOF mid-buffer with identical content.
			return true, nil
		}
	}
}
