// compare.go - Vergleich zweier Metadaten-Saetze

package metadata

import (
	"cmp"
	"slices"
)

// Change ist ein geaenderter Eintrag
type Change struct {
	Key string `json:"key"`
	Old string `json:"old"`
	New string `json:"new"`
}

// Entry ist ein hinzugefuegter oder entfernter Eintrag
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Diff ist das Ergebnis von Compare, jede Liste nach Schluessel sortiert
type Diff struct {
	Added   []Entry  `json:"added"`
	Removed []Entry  `json:"removed"`
	Changed []Change `json:"changed"`
}

// Empty meldet ob beide Seiten gleich sind
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Compare vergleicht a (alt) mit b (neu)
func Compare(a, b *Metadata) Diff {
	d := Diff{Added: []Entry{}, Removed: []Entry{}, Changed: []Change{}}

	for pair := a.raw.Oldest(); pair != nil; pair = pair.Next() {
		nv, ok := b.raw.Get(pair.Key)
		switch {
		case !ok:
			d.Removed = append(d.Removed, Entry{Key: pair.Key, Value: pair.Value})
		case nv != pair.Value:
			d.Changed = append(d.Changed, Change{Key: pair.Key, Old: pair.Value, New: nv})
		}
	}

	for pair := b.raw.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := a.raw.Get(pair.Key); !ok {
			d.Added = append(d.Added, Entry{Key: pair.Key, Value: pair.Value})
		}
	}

	byKey := func(x, y Entry) int { return cmp.Compare(x.Key, y.Key) }
	slices.SortFunc(d.Added, byKey)
	slices.SortFunc(d.Removed, byKey)
	slices.SortFunc(d.Changed, func(x, y Change) int { return cmp.Compare(x.Key, y.Key) })
	return d
}

func sortTagCounts(tc []TagCount) {
	slices.SortFunc(tc, func(a, b TagCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Tag, b.Tag)
	})
}
