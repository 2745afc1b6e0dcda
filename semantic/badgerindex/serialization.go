package badgerindex

import (
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// chunkRecord is one embedded slice of a document as persisted in badger.
type chunkRecord struct {
	Path    string
	Doc     uint64
	Version uint64
	Start   int
	End     int
	Excerpt string
	Vector  []float32
}

func sizeChunkRecord(r *chunkRecord) int {
	size := ord.SizeString(r.Path, nil)
	size += varint.SizeUint64(r.Doc)
	size += varint.SizeUint64(r.Version)
	size += varint.SizeInt(r.Start)
	size += varint.SizeInt(r.End)
	size += ord.SizeString(r.Excerpt, nil)
	size += varint.SizeInt(len(r.Vector))
	for _, v := range r.Vector {
		size += raw.SizeFloat32(v)
	}
	return size
}

// marshalChunkRecord serializes a record with mus-go primitives.
func marshalChunkRecord(r *chunkRecord) []byte {
	bs := make([]byte, sizeChunkRecord(r))
	n := ord.MarshalString(r.Path, nil, bs)
	n += varint.MarshalUint64(r.Doc, bs[n:])
	n += varint.MarshalUint64(r.Version, bs[n:])
	n += varint.MarshalInt(r.Start, bs[n:])
	n += varint.MarshalInt(r.End, bs[n:])
	n += ord.MarshalString(r.Excerpt, nil, bs[n:])
	n += varint.MarshalInt(len(r.Vector), bs[n:])
	for _, v := range r.Vector {
		n += raw.MarshalFloat32(v, bs[n:])
	}
	return bs
}

// unmarshalChunkRecord deserializes a record from bytes.
func unmarshalChunkRecord(bs []byte) (*chunkRecord, error) {
	r := &chunkRecord{}
	path, n, err := ord.UnmarshalString(nil, bs)
	if err != nil {
		return nil, err
	}
	r.Path = path

	doc, m, err := varint.UnmarshalUint64(bs[n:])
	if err != nil {
		return nil, err
	}
	r.Doc = doc
	n += m

	version, m, err := varint.UnmarshalUint64(bs[n:])
	if err != nil {
		return nil, err
	}
	r.Version = version
	n += m

	start, m, err := varint.UnmarshalInt(bs[n:])
	if err != nil {
		return nil, err
	}
	r.Start = start
	n += m

	end, m, err := varint.UnmarshalInt(bs[n:])
	if err != nil {
		return nil, err
	}
	r.End = end
	n += m

	excerpt, m, err := ord.UnmarshalString(nil, bs[n:])
	if err != nil {
		return nil, err
	}
	r.Excerpt = excerpt
	n += m

	count, m, err := varint.UnmarshalInt(bs[n:])
	if err != nil {
		return nil, err
	}
	n += m

	r.Vector = make([]float32, count)
	for i := 0; i < count; i++ {
		v, m, err := raw.UnmarshalFloat32(bs[n:])
		if err != nil {
			return nil, err
		}
		r.Vector[i] = v
		n += m
	}
	return r, nil
}
