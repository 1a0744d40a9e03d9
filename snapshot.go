package zrank

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"sort"

	"github.com/pierrec/xxHash/xxHash64"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT: Saving and Loading a Store
// ═══════════════════════════════════════════════════════════════════════════════
// A snapshot is a self-contained byte image of a Store. What the caller does
// with the bytes - ship them to another process, stash them in a cache,
// diff them - is its own business; the Store itself never touches storage.
//
// BINARY FORMAT (all integers little-endian):
// -------------------------------------------
// [Header]
//   - magic:   uint32  ("ZRNK")
//   - version: uint32
//   - boards:  uint32
//
// [Per board, in sorted name order]
//   - name:    [length: uint32][bytes]
//   - entries: uint64
//   - per entry, in rank order:
//       [memberLength: uint32][member bytes][score: float64 bits]
//
// [Footer]
//   - checksum: uint64 (xxHash64 of everything above)
//
// ENCODING STRATEGY:
// ------------------
// Only the (member, score) pairs are written. Towers, spans, membership
// bitmaps, member IDs, and the bloom filter are all derived state: decoding
// replays every entry through the ordinary Add path, which rebuilds them.
// That keeps the format independent of skip list geometry - two stores with
// different tower layouts produce identical snapshots of identical data.
//
// The checksum makes corruption loud: a flipped bit anywhere in the payload
// fails decode with ErrSnapshotChecksum instead of resurfacing later as a
// mysteriously wrong leaderboard.
// ═══════════════════════════════════════════════════════════════════════════════

const (
	snapshotMagic   uint32 = 0x5a524e4b // "ZRNK"
	snapshotVersion uint32 = 1
	snapshotSeed    uint64 = 0x7a72616e6b // "zrank"
)

var (
	ErrSnapshotTruncated = errors.New("snapshot truncated")
	ErrSnapshotMagic     = errors.New("not a store snapshot")
	ErrSnapshotVersion   = errors.New("unsupported snapshot version")
	ErrSnapshotChecksum  = errors.New("snapshot checksum mismatch")
)

// Encode serializes the store to a snapshot.
func (st *Store) Encode() ([]byte, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	buf := new(bytes.Buffer)
	enc := newSnapshotEncoder(buf)

	// Header
	if err := enc.writeUint32(snapshotMagic); err != nil {
		return nil, err
	}
	if err := enc.writeUint32(snapshotVersion); err != nil {
		return nil, err
	}
	if err := enc.writeUint32(uint32(len(st.boards))); err != nil {
		return nil, err
	}

	// Boards in sorted name order, so equal stores snapshot identically.
	names := make([]string, 0, len(st.boards))
	for name := range st.boards {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := enc.encodeBoard(name, st.boards[name]); err != nil {
			return nil, err
		}
	}

	// Footer: checksum over everything written so far.
	checksum := xxHash64.Checksum(buf.Bytes(), snapshotSeed)
	if err := enc.writeUint64(checksum); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeStore reconstructs a store from a snapshot produced by Encode. The
// checksum is verified before any of the payload is trusted.
func DecodeStore(data []byte) (*Store, error) {
	return DecodeStoreWithParams(data, DefaultListParams())
}

// DecodeStoreWithParams is DecodeStore with explicit skip list tuning for
// the rebuilt boards (tuning is not part of the snapshot).
func DecodeStoreWithParams(data []byte, params ListParams) (*Store, error) {
	if len(data) < 8 {
		return nil, ErrSnapshotTruncated
	}

	payload := data[:len(data)-8]
	footer := binary.LittleEndian.Uint64(data[len(data)-8:])
	if xxHash64.Checksum(payload, snapshotSeed) != footer {
		return nil, ErrSnapshotChecksum
	}

	dec := &snapshotDecoder{data: payload}

	magic, err := dec.readUint32()
	if err != nil {
		return nil, err
	}
	if magic != snapshotMagic {
		return nil, ErrSnapshotMagic
	}
	version, err := dec.readUint32()
	if err != nil {
		return nil, err
	}
	if version != snapshotVersion {
		return nil, ErrSnapshotVersion
	}
	boardCount, err := dec.readUint32()
	if err != nil {
		return nil, err
	}

	store := NewStoreWithParams(params)
	for i := uint32(0); i < boardCount; i++ {
		if err := dec.decodeBoard(store); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// ENCODER
// ═══════════════════════════════════════════════════════════════════════════════

// snapshotEncoder wraps the output buffer with typed write helpers.
type snapshotEncoder struct {
	buffer *bytes.Buffer
}

func newSnapshotEncoder(buffer *bytes.Buffer) *snapshotEncoder {
	return &snapshotEncoder{buffer: buffer}
}

// encodeBoard writes one board: its name, entry count, and every entry in
// rank order.
func (e *snapshotEncoder) encodeBoard(name string, set *SortedSet[string]) error {
	if err := e.writeString(name); err != nil {
		return err
	}
	if err := e.writeUint64(uint64(set.Len())); err != nil {
		return err
	}

	it := set.Iterator()
	for it.HasNext() {
		entry := it.Next()
		if err := e.writeString(entry.Key); err != nil {
			return err
		}
		if err := e.writeFloat64(entry.Score); err != nil {
			return err
		}
	}
	return nil
}

func (e *snapshotEncoder) writeUint32(v uint32) error {
	return binary.Write(e.buffer, binary.LittleEndian, v)
}

func (e *snapshotEncoder) writeUint64(v uint64) error {
	return binary.Write(e.buffer, binary.LittleEndian, v)
}

func (e *snapshotEncoder) writeFloat64(v float64) error {
	return binary.Write(e.buffer, binary.LittleEndian, math.Float64bits(v))
}

// writeString writes a length-prefixed string: [length: uint32][bytes].
func (e *snapshotEncoder) writeString(s string) error {
	if err := e.writeUint32(uint32(len(s))); err != nil {
		return err
	}
	_, err := e.buffer.WriteString(s)
	return err
}

// ═══════════════════════════════════════════════════════════════════════════════
// DECODER
// ═══════════════════════════════════════════════════════════════════════════════

// snapshotDecoder walks the payload with typed read helpers; every read that
// would run past the end reports ErrSnapshotTruncated.
type snapshotDecoder struct {
	data   []byte
	offset int
}

// decodeBoard reads one board and replays its entries into the store. The
// ordinary Add path rebuilds the skip list, the membership bitmap, the
// member IDs, and the bloom filter as a side effect.
func (d *snapshotDecoder) decodeBoard(store *Store) error {
	name, err := d.readString()
	if err != nil {
		return err
	}

	// Materialize the board even when it carries no entries.
	store.mu.Lock()
	store.board(name)
	store.mu.Unlock()

	entries, err := d.readUint64()
	if err != nil {
		return err
	}
	for i := uint64(0); i < entries; i++ {
		member, err := d.readString()
		if err != nil {
			return err
		}
		score, err := d.readFloat64()
		if err != nil {
			return err
		}
		store.Add(name, member, score)
	}
	return nil
}

func (d *snapshotDecoder) readUint32() (uint32, error) {
	if d.offset+4 > len(d.data) {
		return 0, ErrSnapshotTruncated
	}
	v := binary.LittleEndian.Uint32(d.data[d.offset:])
	d.offset += 4
	return v, nil
}

func (d *snapshotDecoder) readUint64() (uint64, error) {
	if d.offset+8 > len(d.data) {
		return 0, ErrSnapshotTruncated
	}
	v := binary.LittleEndian.Uint64(d.data[d.offset:])
	d.offset += 8
	return v, nil
}

func (d *snapshotDecoder) readFloat64() (float64, error) {
	bits, err := d.readUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (d *snapshotDecoder) readString() (string, error) {
	length, err := d.readUint32()
	if err != nil {
		return "", err
	}
	if d.offset+int(length) > len(d.data) {
		return "", ErrSnapshotTruncated
	}
	s := string(d.data[d.offset : d.offset+int(length)])
	d.offset += int(length)
	return s, nil
}
