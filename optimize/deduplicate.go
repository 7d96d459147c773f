package optimize

import (
	"context"
	"sort"

	"github.com/wudi/boletopdf/ir/raw"
)

// combineObjects repeats until a fixpoint since merging children can make
// their parents identical.
func (o *Optimizer) combineObjects(ctx context.Context, doc *raw.Document, includeStreams, includeOthers bool) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		refs := make([]raw.ObjectRef, 0, len(doc.Objects))
		for ref := range doc.Objects {
			refs = append(refs, ref)
		}
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].Num != refs[j].Num {
				return refs[i].Num < refs[j].Num
			}
			return refs[i].Gen < refs[j].Gen
		})

		seen := make(map[string]raw.ObjectRef)
		replacements := make(map[raw.ObjectRef]raw.ObjectRef)
		for _, ref := range refs {
			obj := doc.Objects[ref]
			_, isStream := obj.(*raw.StreamObj)
			if isStream && !includeStreams {
				continue
			}
			if !isStream && (!includeOthers || isPage(obj)) {
				continue
			}
			h := hashObject(obj)
			if original, ok := seen[h]; ok {
				replacements[ref] = original
			} else {
				seen[h] = ref
			}
		}
		if len(replacements) == 0 {
			return total, nil
		}
		applyReplacements(doc, replacements)
		for dup := range replacements {
			delete(doc.Objects, dup)
		}
		total += len(replacements)
	}
}

func isPage(obj raw.Object) bool {
	d, ok := obj.(*raw.DictObj)
	if !ok {
		return false
	}
	typ, _ := d.Name("Type")
	return typ == "Page" || typ == "Pages" || typ == "Catalog"
}

func applyReplacements(doc *raw.Document, replacements map[raw.ObjectRef]raw.ObjectRef) {
	swap := func(r raw.ObjectRef) raw.ObjectRef {
		if to, ok := replacements[r]; ok {
			return to
		}
		return r
	}
	for ref, obj := range doc.Objects {
		doc.Objects[ref] = raw.RewriteRefs(obj, swap)
	}
	if doc.Trailer != nil {
		raw.RewriteRefs(doc.Trailer, swap)
	}
}

// removeUnreferenced deletes objects the trailer cannot reach.
func removeUnreferenced(doc *raw.Document) int {
	if doc.Trailer == nil {
		return 0
	}
	live := make(map[raw.ObjectRef]bool)
	var queue []raw.ObjectRef
	mark := func(r raw.ObjectRef) {
		if !live[r] {
			live[r] = true
			queue = append(queue, r)
		}
	}
	raw.CollectRefs(doc.Trailer, mark)
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		if obj, ok := doc.Objects[r]; ok {
			raw.CollectRefs(obj, mark)
		}
	}
	removed := 0
	for ref := range doc.Objects {
		if !live[ref] {
			delete(doc.Objects, ref)
			removed++
		}
	}
	return removed
}
