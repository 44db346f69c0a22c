// Package wire implements the framed field codec spoken on every
// connection: fixed-width big-endian integers, length-prefixed strings,
// and a one-byte present/absent marker ahead of any field that can
// legitimately be missing.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/rivulet/chat/server/store/types"
)

// Guards against absurd length prefixes from malformed or hostile peers.
const (
	maxStringLen = 1 << 20
	maxListLen   = 1 << 16
)

func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrMalformed, err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func WriteInt32(w io.Writer, v int32) error {
	return WriteUint32(w, uint32(v))
}

func ReadInt32(r io.Reader) (int32, error) {
	v, err := ReadUint32(r)
	return int32(v), err
}

func WriteByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func ReadByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrMalformed, err)
	}
	return buf[0], nil
}

func WriteString(w io.Writer, s string) error {
	if err := WriteUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func ReadString(r io.Reader) (string, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("%w: string length %d", types.ErrMalformed, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrMalformed, err)
	}
	return string(buf), nil
}

func WriteUid(w io.Writer, uid types.Uid) error {
	buf, _ := uid.MarshalBinary()
	_, err := w.Write(buf)
	return err
}

func ReadUid(r io.Reader) (types.Uid, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return types.ZeroUid, fmt.Errorf("%w: %v", types.ErrMalformed, err)
	}
	var uid types.Uid
	uid.UnmarshalBinary(buf[:])
	return uid, nil
}

// Times travel as milliseconds since the Unix epoch.
func WriteTime(w io.Writer, t time.Time) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.UnixMilli()))
	_, err := w.Write(buf[:])
	return err
}

func ReadTime(r io.Reader) (time.Time, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", types.ErrMalformed, err)
	}
	ms := int64(binary.BigEndian.Uint64(buf[:]))
	return time.UnixMilli(ms).UTC(), nil
}

// WriteNullable writes the present/absent marker that precedes any field
// that can be missing.
func WriteNullable(w io.Writer, present bool) error {
	if present {
		return WriteByte(w, 1)
	}
	return WriteByte(w, 0)
}

// ReadNullable reads a present/absent marker.
func ReadNullable(r io.Reader) (bool, error) {
	b, err := ReadByte(r)
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: nullable marker %d", types.ErrMalformed, b)
	}
}

func WriteUidList(w io.Writer, ids []types.Uid) error {
	if err := WriteUint32(w, uint32(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		if err := WriteUid(w, id); err != nil {
			return err
		}
	}
	return nil
}

func ReadUidList(r io.Reader) ([]types.Uid, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if n > maxListLen {
		return nil, fmt.Errorf("%w: list length %d", types.ErrMalformed, n)
	}
	ids := make([]types.Uid, 0, n)
	for i := uint32(0); i < n; i++ {
		id, err := ReadUid(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func WriteStringList(w io.Writer, ss []string) error {
	if err := WriteUint32(w, uint32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func ReadStringList(r io.Reader) ([]string, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if n > maxListLen {
		return nil, fmt.Errorf("%w: list length %d", types.ErrMalformed, n)
	}
	ss := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		ss = append(ss, s)
	}
	return ss, nil
}
