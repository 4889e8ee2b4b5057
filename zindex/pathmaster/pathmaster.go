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

// Package pathmaster owns the on-disk directory layout a build reads from
// and writes to, plus LogAnalyzer, which turns that layout and a requested
// corpus range into the concrete byte ranges a build should actually read.
package pathmaster

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar"
	"github.com/pkg/errors"

	"github.com/kosak/z2kplus-sub002/zindex"
)

const indexFileName = "z2k.index"

// PathMaster owns five subdirectories under a single root: logged/ and
// unlogged/ plaintext trees, index/ (the published frozen index),
// scratch/ (build working files), and media/ (attachments, untouched by
// this builder). This is a direct port of the original's PathMaster:
// five fixed subdirectories created on demand, never configurable
// independently of the root.
type PathMaster struct {
	root        string
	loggedRoot  string
	unloggedRoot string
	indexRoot   string
	scratchRoot string
	mediaRoot   string
}

// Create ensures root and its five subdirectories exist (creating any
// that are missing) and returns a PathMaster rooted there.
func Create(root string) (*PathMaster, error) {
	pm := &PathMaster{
		root:         root,
		loggedRoot:   filepath.Join(root, "logged"),
		unloggedRoot: filepath.Join(root, "unlogged"),
		indexRoot:    filepath.Join(root, "index"),
		scratchRoot:  filepath.Join(root, "scratch"),
		mediaRoot:    filepath.Join(root, "media"),
	}
	for _, dir := range []string{pm.loggedRoot, pm.unloggedRoot, pm.indexRoot, pm.scratchRoot, pm.mediaRoot} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrapf(err, "pathmaster: Create: mkdir %s", dir)
		}
	}
	return pm, nil
}

// PlaintextPath returns the path of the logged or unlogged plaintext file
// named by key, e.g. root/logged/2024/03/20240317.logged.
func (pm *PathMaster) PlaintextPath(key zindex.EitherKey) string {
	year, month, day, logged := key.Expand()
	base := pm.unloggedRoot
	suffix := "unlogged"
	if logged {
		base = pm.loggedRoot
		suffix = "logged"
	}
	return filepath.Join(base, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month),
		fmt.Sprintf("%04d%02d%02d.%s", year, month, day, suffix))
}

// IndexPath is the published frozen index file's path.
func (pm *PathMaster) IndexPath() string { return filepath.Join(pm.indexRoot, indexFileName) }

// ScratchIndexPath is where the Top-Level Builder writes the new frozen
// index before PublishBuild atomically renames it into place.
func (pm *PathMaster) ScratchIndexPath() string { return filepath.Join(pm.scratchRoot, indexFileName) }

// ScratchPathFor names a scratch working file, e.g. a per-shard tuple
// file or a sort-merge intermediate.
func (pm *PathMaster) ScratchPathFor(name string) string { return filepath.Join(pm.scratchRoot, name) }

// ScratchRoot is the scratch directory itself, for callers that need to
// list or clear it wholesale before a build.
func (pm *PathMaster) ScratchRoot() string { return pm.scratchRoot }

// PublishBuild atomically moves the freshly-built scratch index into the
// published index path.
func (pm *PathMaster) PublishBuild() error {
	if err := os.Rename(pm.ScratchIndexPath(), pm.IndexPath()); err != nil {
		return errors.Wrap(err, "pathmaster: PublishBuild")
	}
	return nil
}

// PlaintextVisitor is called once per discovered plaintext file.
type PlaintextVisitor func(key zindex.EitherKey, path string) error

// WalkPlaintexts enumerates every logged then every unlogged plaintext
// file under the root, parsing each one's yyyy/mm/yyyymmdd.{logged,unlogged}
// path grammar and invoking visit with the corresponding EitherKey. A
// file whose path doesn't match the grammar, or whose reconstructed date
// disagrees with its directory prefix, is an error: spec.md treats the
// corpus layout as load-bearing, not advisory.
func (pm *PathMaster) WalkPlaintexts(visit PlaintextVisitor) error {
	if err := walkOneSide(pm.loggedRoot, true, visit); err != nil {
		return err
	}
	return walkOneSide(pm.unloggedRoot, false, visit)
}

func walkOneSide(root string, expectLogged bool, visit PlaintextVisitor) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Wrapf(err, "pathmaster: WalkPlaintexts: %s", path)
		}
		if info.IsDir() {
			return nil
		}
		if excluded, matchErr := matchesExcludeGlob(filepath.Base(path)); matchErr != nil {
			return errors.Wrapf(matchErr, "pathmaster: WalkPlaintexts: %s", path)
		} else if excluded {
			return nil
		}
		key, err := parsePlaintextPath(root, path, expectLogged)
		if err != nil {
			return errors.Wrapf(err, "pathmaster: WalkPlaintexts: %s", path)
		}
		return visit(key, path)
	})
}

func matchesExcludeGlob(base string) (bool, error) {
	for _, pat := range ExcludeGlobs {
		matched, err := doublestar.Match(pat, base)
		if err != nil {
			return false, errors.Wrapf(err, "bad glob %q", pat)
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// parsePlaintextPath parses the trailing yyyy/mm/yyyymmdd.{logged,unlogged}
// grammar off path (relative to root) the way the original's
// tryGetPlaintextsHelper does, cross-checking the yyyy/mm directory
// prefix against the embedded yyyymmdd.
func parsePlaintextPath(root, path string, expectLogged bool) (zindex.EitherKey, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return zindex.EitherKey{}, err
	}
	var year, month, day int
	var suffix string
	n, err := fmt.Sscanf(filepath.Base(rel), "%4d%2d%2d.%s", &year, &month, &day, &suffix)
	if err != nil || n != 4 {
		return zindex.EitherKey{}, fmt.Errorf("%w: pathmaster: malformed plaintext filename %q", zindex.ErrParse, rel)
	}
	var logged bool
	switch suffix {
	case "logged":
		logged = true
	case "unlogged":
		logged = false
	default:
		return zindex.EitherKey{}, fmt.Errorf("%w: pathmaster: unrecognized suffix %q in %q", zindex.ErrParse, suffix, rel)
	}
	if logged != expectLogged {
		return zindex.EitherKey{}, fmt.Errorf("%w: pathmaster: %q found under the wrong root (expected logged=%v)", zindex.ErrParse, rel, expectLogged)
	}
	dirYear := filepath.Base(filepath.Dir(filepath.Dir(rel)))
	dirMonth := filepath.Base(filepath.Dir(rel))
	wantDir := fmt.Sprintf("%04d/%02d", year, month)
	gotDir := filepath.Join(dirYear, dirMonth)
	if gotDir != wantDir {
		return zindex.EitherKey{}, fmt.Errorf("%w: pathmaster: %q's yyyy/mm directory disagrees with its filename", zindex.ErrParse, rel)
	}
	return zindex.NewEitherKey(uint32(year), uint32(month), uint32(day), logged), nil
}
