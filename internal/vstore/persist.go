package vstore

import (
	"io"
	"math/bits"

	"github.com/gigavector/gigavector/internal/binformat"
)

// WritePayload writes the SoA payload, metadata section, and tombstone
// bitmap exactly as described for the database file format: the SoA
// vectors (count*dimension f32), then a metadata section (u32 count, then
// per-row u32 pair_count then (u32 klen,bytes,u32 vlen,bytes) pairs), then
// a tombstone bitmap of ceil(count/8) bytes. It does not write the
// database's outer magic/version/index-kind header; that is the facade's
// responsibility since it frames the index-specific payload that follows.
func (s *Store) WritePayload(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := binformat.WriteF32Slice(w, s.data[:s.count*s.dimension]); err != nil {
		return err
	}

	if err := binformat.WriteU32(w, uint32(s.count)); err != nil {
		return err
	}
	for row := 0; row < s.count; row++ {
		md := s.metadata[row]
		if err := binformat.WriteU32(w, uint32(md.Len())); err != nil {
			return err
		}
		var werr error
		md.Each(func(key, value string) {
			if werr != nil {
				return
			}
			if err := binformat.WriteString(w, key); err != nil {
				werr = err
				return
			}
			if err := binformat.WriteString(w, value); err != nil {
				werr = err
				return
			}
		})
		if werr != nil {
			return werr
		}
	}

	bitmap := make([]byte, (s.count+7)/8)
	for row, deleted := range s.tombstones {
		if deleted {
			bitmap[row/8] |= 1 << uint(row%8)
		}
	}
	_, err := w.Write(bitmap)
	return err
}

// ReadPayload reads the payload written by WritePayload into a fresh store
// for the given count/dimension; count and dimension are expected to have
// already been read from the outer database header.
func ReadPayload(r io.Reader, count, dimension int) (*Store, error) {
	s := &Store{dimension: dimension}

	data, err := binformat.ReadF32Slice(r, count*dimension)
	if err != nil {
		return nil, err
	}
	s.data = data
	s.capacity = count

	mdCount, err := binformat.ReadU32(r)
	if err != nil {
		return nil, err
	}
	if int(mdCount) != count {
		return nil, &corruptionError{"metadata row count does not match vector count"}
	}

	s.metadata = make([]*Metadata, count)
	for row := 0; row < count; row++ {
		pairCount, err := binformat.ReadU32(r)
		if err != nil {
			return nil, err
		}
		md := NewMetadata()
		for i := uint32(0); i < pairCount; i++ {
			key, err := binformat.ReadString(r)
			if err != nil {
				return nil, err
			}
			value, err := binformat.ReadString(r)
			if err != nil {
				return nil, err
			}
			md.Set(key, value)
		}
		s.metadata[row] = md
	}

	bitmapLen := (count + 7) / 8
	bitmap := make([]byte, bitmapLen)
	if _, err := io.ReadFull(r, bitmap); err != nil {
		return nil, err
	}
	s.tombstones = make([]bool, count)
	for row := range s.tombstones {
		if bitmap[row/8]&(1<<uint(row%8)) != 0 {
			s.tombstones[row] = true
		}
	}
	s.count = count

	return s, nil
}

// PopcountTombstones reports how many rows in the bitmap are marked
// deleted; used by load-time sanity checks.
func PopcountTombstones(bitmap []byte) int {
	n := 0
	for _, b := range bitmap {
		n += bits.OnesCount8(b)
	}
	return n
}

type corruptionError struct{ msg string }

func (e *corruptionError) Error() string { return "vstore: corruption: " + e.msg }
