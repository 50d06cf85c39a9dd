package event

import (
	"encoding/binary"
	"encoding/hex"

	"lukechampine.com/blake3"
)

// ComputeHash returns the content hash of an event. It covers the type, the
// stream position and the payload, not the global sequence or commit fields.
func ComputeHash(evt Event) string {
	h := blake3.New(32, nil)
	writeField(h, []byte(evt.StreamID))
	var version [8]byte
	binary.BigEndian.PutUint64(version[:], evt.Version)
	h.Write(version[:])
	writeField(h, []byte(evt.Type))
	writeField(h, evt.PayloadJSON)
	return hex.EncodeToString(h.Sum(nil))
}

// ChainHash links an event hash to the chain hash of its predecessor in the
// same stream. The first event of a stream chains from "".
func ChainHash(previous, hash string) string {
	sum := blake3.Sum256([]byte(previous + "\n" + hash))
	return hex.EncodeToString(sum[:])
}

func writeField(h *blake3.Hasher, field []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(field)))
	h.Write(length[:])
	h.Write(field)
}
