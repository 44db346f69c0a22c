package types

import (
	"encoding/binary"

	sf "github.com/tinode/snowflake"
	"golang.org/x/crypto/xtea"
)

// UidGenerator produces unique ids for a single server. A snowflake
// sequence (worker id + wall clock) guarantees uniqueness within the
// server's id space; an XTEA pass scrambles the sequence so ids look
// random on the wire.
type UidGenerator struct {
	seq    *sf.SnowFlake
	cipher *xtea.Cipher
}

// Init initialises the generator with the server's worker id and a
// 16-byte cipher key.
func (ug *UidGenerator) Init(workerID uint, key []byte) error {
	var err error

	if ug.seq == nil {
		if ug.seq, err = sf.NewSnowFlake(uint32(workerID)); err != nil {
			return err
		}
	}
	if ug.cipher == nil {
		if ug.cipher, err = xtea.NewCipher(key); err != nil {
			return err
		}
	}

	return nil
}

// Get produces the next id. Returns ZeroUid if the generator is not
// initialised or the sequence is exhausted for this tick.
func (ug *UidGenerator) Get() Uid {
	if ug.seq == nil || ug.cipher == nil {
		return ZeroUid
	}

	id, err := ug.seq.Next()
	if err != nil {
		return ZeroUid
	}

	src := make([]byte, 8)
	dst := make([]byte, 8)
	binary.LittleEndian.PutUint64(src, id)
	ug.cipher.Encrypt(dst, src)

	return Uid(binary.LittleEndian.Uint64(dst))
}
