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

package zindex

import "fmt"

// LoggedKey identifies a file known, at the type level, to hold logged
// zgrams. UnloggedKey is the unlogged counterpart, and EitherKey erases the
// distinction for call sites (like LogLocation) that must store either kind
// in a single fixed-layout field. This mirrors the FileKey<FileKeyKind>
// template discipline of the original: it exists to prevent accidental
// mixing at construction sites, not to add runtime behavior.
//
// Raw encoding: ((yyyy*100+mm)*100+dd)*10 + (logged?1:0). Ordering on the
// raw value equals chronological order with logged>unlogged tie-break.
type (
	LoggedKey   struct{ raw uint32 }
	UnloggedKey struct{ raw uint32 }
	EitherKey   struct{ raw uint32 }
)

func rawFromDate(year, month, day uint32, logged bool) uint32 {
	raw := year
	raw = raw*100 + month
	raw = raw*100 + day
	raw = raw*10
	if logged {
		raw++
	}
	return raw
}

// NewLoggedKey builds a LoggedKey from a calendar date.
func NewLoggedKey(year, month, day uint32) LoggedKey {
	return LoggedKey{rawFromDate(year, month, day, true)}
}

// NewUnloggedKey builds an UnloggedKey from a calendar date.
func NewUnloggedKey(year, month, day uint32) UnloggedKey {
	return UnloggedKey{rawFromDate(year, month, day, false)}
}

// LoggedKeyFromRaw validates that raw is odd (the Logged discriminant)
// before wrapping it.
func LoggedKeyFromRaw(raw uint32) (LoggedKey, error) {
	if raw&1 == 0 {
		return LoggedKey{}, fmt.Errorf("zindex: raw value %d is not a Logged file key", raw)
	}
	return LoggedKey{raw}, nil
}

// UnloggedKeyFromRaw validates that raw is even (the Unlogged discriminant)
// before wrapping it.
func UnloggedKeyFromRaw(raw uint32) (UnloggedKey, error) {
	if raw&1 == 1 {
		return UnloggedKey{}, fmt.Errorf("zindex: raw value %d is not an Unlogged file key", raw)
	}
	return UnloggedKey{raw}, nil
}

// EitherKeyFromRaw wraps a raw value of either parity; the caller has
// already lost (or never had) type-level knowledge of which.
func EitherKeyFromRaw(raw uint32) EitherKey { return EitherKey{raw} }

// NewEitherKey builds an EitherKey directly from a calendar date and the
// logged/unlogged discriminant, for callers (like pathmaster) that parse
// both kinds off the same directory walk and have no use for the
// LoggedKey/UnloggedKey type-level distinction at the construction site.
func NewEitherKey(year, month, day uint32, logged bool) EitherKey {
	return EitherKey{rawFromDate(year, month, day, logged)}
}

func (k LoggedKey) Raw() uint32   { return k.raw }
func (k UnloggedKey) Raw() uint32 { return k.raw }
func (k EitherKey) Raw() uint32   { return k.raw }

func (k LoggedKey) IsLogged() bool   { return true }
func (k UnloggedKey) IsLogged() bool { return false }
func (k EitherKey) IsLogged() bool   { return k.raw&1 != 0 }

// AsEither erases the Logged/Unlogged distinction.
func (k LoggedKey) AsEither() EitherKey   { return EitherKey{k.raw} }
func (k UnloggedKey) AsEither() EitherKey { return EitherKey{k.raw} }

// AsLogged recovers the Logged type if the discriminant agrees.
func (k EitherKey) AsLogged() (LoggedKey, bool) {
	if !k.IsLogged() {
		return LoggedKey{}, false
	}
	return LoggedKey{k.raw}, true
}

// AsUnlogged recovers the Unlogged type if the discriminant agrees.
func (k EitherKey) AsUnlogged() (UnloggedKey, bool) {
	if k.IsLogged() {
		return UnloggedKey{}, false
	}
	return UnloggedKey{k.raw}, true
}

// Expand decodes the raw value back into (year, month, day, isLogged).
func expandRaw(raw uint32) (year, month, day uint32, logged bool) {
	logged = raw%10 != 0
	raw /= 10
	day = raw % 100
	raw /= 100
	month = raw % 100
	raw /= 100
	year = raw
	return
}

func (k LoggedKey) Expand() (year, month, day uint32)   { year, month, day, _ = expandRaw(k.raw); return }
func (k UnloggedKey) Expand() (year, month, day uint32) { year, month, day, _ = expandRaw(k.raw); return }
func (k EitherKey) Expand() (year, month, day uint32, logged bool) { return expandRaw(k.raw) }

func (k LoggedKey) String() string {
	y, m, d := k.Expand()
	return fmt.Sprintf("%04d%02d%02d.logged", y, m, d)
}

func (k UnloggedKey) String() string {
	y, m, d := k.Expand()
	return fmt.Sprintf("%04d%02d%02d.unlogged", y, m, d)
}

func (k EitherKey) String() string {
	y, m, d, logged := k.Expand()
	suffix := "unlogged"
	if logged {
		suffix = "logged"
	}
	return fmt.Sprintf("%04d%02d%02d.%s", y, m, d, suffix)
}

// LoggedKeyInfinity / UnloggedKeyInfinity are sentinel "past the end of
// time" keys, used to express an open-ended InterFileRange.
var (
	LoggedKeyInfinity   = NewLoggedKey(9999, 12, 31)
	UnloggedKeyInfinity = NewUnloggedKey(9999, 12, 31)
)

// fileKeyValue is the constraint used by the generic position/range types
// below: any of the three FileKey flavors expose Raw().
type fileKeyValue interface {
	comparable
	Raw() uint32
}

// FilePosition is a (FileKey, byte offset) pair, generic over the key
// flavor so that LogAnalyzer's logged and unlogged cursors cannot be
// accidentally swapped at the type level.
type FilePosition[K fileKeyValue] struct {
	Key      K
	Position uint32
}

func (p FilePosition[K]) Less(o FilePosition[K]) bool {
	if p.Key.Raw() != o.Key.Raw() {
		return p.Key.Raw() < o.Key.Raw()
	}
	return p.Position < o.Position
}

func (p FilePosition[K]) Equal(o FilePosition[K]) bool {
	return p.Key == o.Key && p.Position == o.Position
}

// IntraFileRange is a byte range [Begin, End) inside one file.
type IntraFileRange[K fileKeyValue] struct {
	Key   K
	Begin uint32
	End   uint32
}

// InterFileRange is a range spanning possibly many files, used to describe
// the whole valid corpus (or a partial-rebuild slice of it) that a build
// should consider.
type InterFileRange[K fileKeyValue] struct {
	Begin FilePosition[K]
	End   FilePosition[K]
}

// IntersectWith returns the overlap of two ranges, or an empty range (with
// Begin==End==r.End) if they don't overlap.
func (r InterFileRange[K]) IntersectWith(o InterFileRange[K]) InterFileRange[K] {
	newBegin := r.Begin
	if o.Begin.Less(r.Begin) {
		// newBegin already r.Begin (the max)
	} else {
		newBegin = o.Begin
	}
	newEnd := r.End
	if o.End.Less(r.End) {
		newEnd = o.End
	}
	if newEnd.Less(newBegin) {
		return InterFileRange[K]{Begin: r.End, End: r.End}
	}
	return InterFileRange[K]{Begin: newBegin, End: newEnd}
}

func (r InterFileRange[K]) Empty() bool { return r.Begin.Equal(r.End) }

// EverythingLogged / EverythingUnlogged describe an unrestricted corpus
// range for their respective partition.
func EverythingLogged() InterFileRange[LoggedKey] {
	return InterFileRange[LoggedKey]{
		Begin: FilePosition[LoggedKey]{},
		End:   FilePosition[LoggedKey]{Key: LoggedKeyInfinity},
	}
}

func EverythingUnlogged() InterFileRange[UnloggedKey] {
	return InterFileRange[UnloggedKey]{
		Begin: FilePosition[UnloggedKey]{},
		End:   FilePosition[UnloggedKey]{Key: UnloggedKeyInfinity},
	}
}

// LogLocation identifies the exact substring of a plaintext file a record
// was parsed from. Trivially copyable, fixed layout: this is what gets
// blitted into the arena as part of ZgramInfo. The original C++
// constructor carries an unused fourth "zamboniTime" argument that is
// stored nowhere; it is omitted here (see DESIGN.md Open Questions).
type LogLocation struct {
	FileKey EitherKey
	Offset  uint32
	Size    uint32
}
