package object

import "strconv"

// RenameMap records, per resource-type key (e.g. "Font", "XObject"), the
// mapping from an original name in the "other" side of a merge to the
// unique name it was renamed to because of a colliding-but-different
// object reference. A caller of MergeResources uses it to rewrite any
// content-stream operators that referenced the old names; no package in
// this module calls MergeResources.
type RenameMap map[Name]map[Name]Name

// MergeResources merges other into self in place, following spec §4.3's
// resource-merge algorithm: self and other are dictionaries whose values
// are themselves resource maps (Name -> indirect reference). For each
// resource-type key present in other:
//   - if self lacks the key, the whole sub-dictionary is adopted as-is;
//   - if both sides have a Dict, child keys are merged one at a time:
//     identical target references are deduplicated (self's wins, other's
//     reference is simply dropped); colliding keys with differing targets
//     get a numeric suffix appended to the other-side key, and the rename
//     is recorded in the returned RenameMap.
func MergeResources(self, other *Dict) RenameMap {
	renames := RenameMap{}
	if self == nil || other == nil {
		return renames
	}
	for _, typeKey := range other.Keys() {
		otherVal := other.Get(typeKey)
		otherDict, otherIsDict := otherVal.(*Dict)

		selfVal, hasSelf := self.Lookup(typeKey)
		if !hasSelf {
			self.Set(typeKey, otherVal)
			continue
		}
		selfDict, selfIsDict := selfVal.(*Dict)
		if !selfIsDict || !otherIsDict {
			// Non-dict resource category (rare): self's value wins.
			continue
		}

		childRenames := map[Name]Name{}
		for _, childKey := range otherDict.Keys() {
			otherChild := otherDict.Get(childKey)
			selfChild, collide := selfDict.Lookup(childKey)
			if !collide {
				selfDict.Set(childKey, otherChild)
				continue
			}
			if sameReference(selfChild, otherChild) {
				// Same underlying object: keep self's reference, drop other's.
				continue
			}
			newKey := uniqueName(selfDict, childKey)
			selfDict.Set(newKey, otherChild)
			childRenames[childKey] = newKey
		}
		if len(childRenames) > 0 {
			renames[typeKey] = childRenames
		}
	}
	return renames
}

func sameReference(a, b Object) bool {
	ra, aok := a.(Reference)
	rb, bok := b.(Reference)
	if aok && bok {
		return ra == rb
	}
	return false
}

// uniqueName appends the smallest positive numeric suffix to base that is
// not already a key of d.
func uniqueName(d *Dict, base Name) Name {
	for i := 1; ; i++ {
		candidate := Name(string(base) + strconv.Itoa(i))
		if _, ok := d.Lookup(candidate); !ok {
			return candidate
		}
	}
}
