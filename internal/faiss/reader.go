// Package faiss reads similarity indexes written by FAISS's write_index into
// an in-memory rag.FlatIndex. Only exact (flat) indexes and their IndexIDMap
// wrappers are supported; quantised or graph indexes are rejected.
//
// On-disk layout, all little-endian:
//
//	fourcc   [4]byte   "IxFI" | "IxF2" | "IxFl" | "IxMp" | "IxM2"
//	d        int32
//	ntotal   int64
//	dummy    int64 x 2
//	trained  uint8
//	metric   int32     0 = inner product, 1 = L2
//	arg      float32   only when metric > 1
//
// A flat index follows the header with a uint64 float count and the row-major
// vectors. An ID map follows its header with the nested index and then a
// uint64 count and the int64 ids.
package faiss

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/54b3r/vetrag-go/internal/rag"
)

// Index type tags as written by FAISS.
const (
	fourccFlatIP  = "IxFI"
	fourccFlatL2  = "IxF2"
	fourccFlat    = "IxFl"
	fourccIDMap   = "IxMp"
	fourccIDMap2  = "IxM2"
	metricIP      = 0
	metricL2      = 1
	readChunkSize = 1 << 16
)

// header is the common prefix of every serialised index.
type header struct {
	dim    int
	ntotal int64
	metric rag.Metric
}

// decoded is a flat index read from disk, before validation by rag.
type decoded struct {
	header
	data []float32
	ids  []int64
}

// Load reads the FAISS index at path. A missing, truncated, or unsupported
// file is reported as rag.ErrIndexLoad.
func Load(path string) (*rag.FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("faiss: open %s: %w: %w", path, rag.ErrIndexLoad, err)
	}
	defer f.Close()

	idx, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("faiss: %s: %w", path, err)
	}
	return idx, nil
}

// Read decodes a serialised FAISS index from r.
func Read(r io.Reader) (*rag.FlatIndex, error) {
	d, err := readIndex(r, 0)
	if err != nil {
		return nil, err
	}
	return rag.NewFlatIndex(d.dim, d.data, d.metric, d.ids)
}

// readIndex decodes one index, recursing once for ID map wrappers.
func readIndex(r io.Reader, depth int) (*decoded, error) {
	var tag [4]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, loadErr("read index type", err)
	}

	switch fourcc := string(tag[:]); fourcc {
	case fourccFlatIP, fourccFlatL2, fourccFlat:
		h, err := readHeader(r)
		if err != nil {
			return nil, err
		}
		if (fourcc == fourccFlatIP && h.metric != rag.MetricInnerProduct) ||
			(fourcc == fourccFlatL2 && h.metric != rag.MetricL2) {
			return nil, fmt.Errorf("faiss: %s index declares metric %s: %w", fourcc, h.metric, rag.ErrIndexLoad)
		}
		data, err := readFloats(r, h)
		if err != nil {
			return nil, err
		}
		return &decoded{header: h, data: data}, nil

	case fourccIDMap, fourccIDMap2:
		if depth > 0 {
			return nil, fmt.Errorf("faiss: nested %s wrapper: %w", fourcc, rag.ErrIndexLoad)
		}
		h, err := readHeader(r)
		if err != nil {
			return nil, err
		}
		inner, err := readIndex(r, depth+1)
		if err != nil {
			return nil, err
		}
		if inner.dim != h.dim || inner.ntotal != h.ntotal {
			return nil, fmt.Errorf("faiss: id map header (d=%d, n=%d) disagrees with wrapped index (d=%d, n=%d): %w",
				h.dim, h.ntotal, inner.dim, inner.ntotal, rag.ErrIndexLoad)
		}
		ids, err := readIDs(r, h.ntotal)
		if err != nil {
			return nil, err
		}
		inner.ids = ids
		return inner, nil

	default:
		return nil, fmt.Errorf("faiss: unsupported index type %q (only flat and IDMap indexes can be read): %w", fourcc, rag.ErrIndexLoad)
	}
}

// readHeader decodes the fields every FAISS index writes after its fourcc.
func readHeader(r io.Reader) (header, error) {
	var raw struct {
		Dim     int32
		NTotal  int64
		Dummy1  int64
		Dummy2  int64
		Trained uint8
		Metric  int32
	}
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return header{}, loadErr("read header", err)
	}
	if raw.Dim <= 0 {
		return header{}, fmt.Errorf("faiss: dimension %d is not positive: %w", raw.Dim, rag.ErrIndexLoad)
	}
	if raw.NTotal < 0 {
		return header{}, fmt.Errorf("faiss: vector count %d is negative: %w", raw.NTotal, rag.ErrIndexLoad)
	}

	h := header{dim: int(raw.Dim), ntotal: raw.NTotal}
	switch raw.Metric {
	case metricIP:
		h.metric = rag.MetricInnerProduct
	case metricL2:
		h.metric = rag.MetricL2
	default:
		var arg float32
		if err := binary.Read(r, binary.LittleEndian, &arg); err != nil {
			return header{}, loadErr("read metric argument", err)
		}
		return header{}, fmt.Errorf("faiss: metric type %d is not supported: %w", raw.Metric, rag.ErrIndexLoad)
	}
	return h, nil
}

// readFloats reads the float count and the row-major vector data. Data is
// read in chunks so a corrupt count fails at EOF instead of allocating.
func readFloats(r io.Reader, h header) ([]float32, error) {
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, loadErr("read vector count", err)
	}
	want := uint64(h.ntotal) * uint64(h.dim)
	if count != want {
		return nil, fmt.Errorf("faiss: header declares %d vectors of dimension %d but data holds %d floats: %w",
			h.ntotal, h.dim, count, rag.ErrIndexLoad)
	}

	data := make([]float32, 0, min(count, readChunkSize))
	chunk := make([]float32, readChunkSize)
	for remaining := count; remaining > 0; {
		n := min(remaining, readChunkSize)
		if err := binary.Read(r, binary.LittleEndian, chunk[:n]); err != nil {
			return nil, loadErr("read vectors", err)
		}
		data = append(data, chunk[:n]...)
		remaining -= n
	}
	return data, nil
}

// readIDs reads an IndexIDMap id table of ntotal entries.
func readIDs(r io.Reader, ntotal int64) ([]int64, error) {
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, loadErr("read id count", err)
	}
	if count != uint64(ntotal) {
		return nil, fmt.Errorf("faiss: id map holds %d ids for %d vectors: %w", count, ntotal, rag.ErrIndexLoad)
	}
	ids := make([]int64, 0, min(count, readChunkSize))
	chunk := make([]int64, readChunkSize)
	for remaining := count; remaining > 0; {
		n := min(remaining, readChunkSize)
		if err := binary.Read(r, binary.LittleEndian, chunk[:n]); err != nil {
			return nil, loadErr("read ids", err)
		}
		ids = append(ids, chunk[:n]...)
		remaining -= n
	}
	return ids, nil
}

// loadErr wraps an I/O failure, naming truncation explicitly.
func loadErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("faiss: %s: file is truncated: %w", what, rag.ErrIndexLoad)
	}
	return fmt.Errorf("faiss: %s: %w: %w", what, rag.ErrIndexLoad, err)
}
