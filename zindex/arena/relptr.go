// Copyright 2023 The Z2K Plus+ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package arena

import "encoding/binary"

// RelPtrSize is the on-disk width of an encoded relative pointer.
const RelPtrSize = 8

// RelPtr is a position-independent reference: the signed byte delta from
// the address of the pointer field itself to the address of the pointee.
// Because the delta is relative to the pointer's own location rather than
// to a fixed arena base, the whole arena can be memcpy'd or mmap'd at any
// address without rewriting a single pointer, so long as the relative
// offsets between pointer and pointee are preserved by the copy.
//
// A RelPtr is encoded as a little-endian int64 at its own slot offset.
// Decoding requires the slot's absolute offset as context, which is why
// Encode/Decode below take it explicitly rather than hanging methods off
// a zero-sized type.

// EncodeRelPtr writes the relative pointer from slotOffset to
// targetOffset into buf (which must be at least RelPtrSize bytes).
func EncodeRelPtr(buf []byte, slotOffset, targetOffset int64) {
	delta := targetOffset - slotOffset
	binary.LittleEndian.PutUint64(buf, uint64(delta))
}

// DecodeRelPtr reads a relative pointer out of buf (the RelPtrSize bytes
// at slotOffset) and resolves it to an absolute offset.
func DecodeRelPtr(buf []byte, slotOffset int64) int64 {
	delta := int64(binary.LittleEndian.Uint64(buf))
	return slotOffset + delta
}

// NullRelPtr is the delta value meaning "no pointee". A pointer can never
// legitimately target its own slot, so a zero delta is available as the
// sentinel.
const NullRelPtr = 0

// IsNull reports whether the first RelPtrSize bytes of buf encode a null
// pointer.
func IsNull(buf []byte) bool {
	return binary.LittleEndian.Uint64(buf) == NullRelPtr
}

// PutNull writes the null sentinel into buf.
func PutNull(buf []byte) {
	binary.LittleEndian.PutUint64(buf, NullRelPtr)
}

// Alloc + EncodeRelPtr/DecodeRelPtr together give every frozen container
// in package frozen the same pointer discipline: a writer reserves a
// fixed-size pointer slot with Alloc, later allocates the pointee
// elsewhere in the arena, and calls EncodeRelPtr(slotBuf, slotOffset,
// pointeeOffset); a reader holding slotOffset and the mapped bytes calls
// DecodeRelPtr to get pointeeOffset back, then Reader.Bytes to dereference
// it.
