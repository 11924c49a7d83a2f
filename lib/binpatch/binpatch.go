/*
 * Copyright (c) SAS Institute Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package binpatch describes a set of byte-range replacements to apply
// to a file without holding the whole rewritten copy in memory at once.
package binpatch

import (
	"fmt"
	"io"
	"sort"
)

type offsetLength struct {
	Offset int64
	Length int64
}

// PatchSet is an unordered collection of non-overlapping byte-range
// replacements. Offset/Length pairs and their replacement blobs are
// kept in parallel slices so the pair can be sorted by Offset in place.
type PatchSet struct {
	Patches []offsetLength
	Blobs   [][]byte
}

// New returns an empty PatchSet.
func New() *PatchSet {
	return new(PatchSet)
}

// Add records that the length bytes at offset in the source should be
// replaced by blob. blob need not be the same length as the region it
// replaces.
func (p *PatchSet) Add(offset int64, length int, blob []byte) {
	p.Patches = append(p.Patches, offsetLength{Offset: offset, Length: int64(length)})
	p.Blobs = append(p.Blobs, blob)
}

// Apply copies src (of size srcLen) to dst with every region replaced
// by its patch blob and everything else passed through unchanged.
func (p *PatchSet) Apply(src io.ReaderAt, srcLen int64, dst io.Writer) error {
	sort.Sort(sorter{p})
	var pos int64
	for i, pl := range p.Patches {
		if pl.Offset < pos {
			return fmt.Errorf("binpatch: region at offset %d overlaps preceding region ending at %d", pl.Offset, pos)
		}
		if pl.Offset > pos {
			if _, err := io.Copy(dst, io.NewSectionReader(src, pos, pl.Offset-pos)); err != nil {
				return err
			}
		}
		if _, err := dst.Write(p.Blobs[i]); err != nil {
			return err
		}
		pos = pl.Offset + pl.Length
	}
	if pos < srcLen {
		if _, err := io.Copy(dst, io.NewSectionReader(src, pos, srcLen-pos)); err != nil {
			return err
		}
	} else if pos > srcLen {
		return fmt.Errorf("binpatch: patch region extends to %d past source length %d", pos, srcLen)
	}
	return nil
}
