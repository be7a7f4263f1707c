package pool

import "testing"

func TestSegmentArenaGrowsFromInitialCapacity(t *testing.T) {
	a := newSegmentArena()

	if err := a.ensureCapacity(); err != nil {
		t.Fatalf("ensureCapacity: %v", err)
	}

	if len(a.slots) != initialSegmentCapacity {
		t.Fatalf("want initial capacity %d, got %d", initialSegmentCapacity, len(a.slots))
	}

	for i := 0; i < initialSegmentCapacity*3/4+1; i++ {
		a.acquire()
	}

	if err := a.ensureCapacity(); err != nil {
		t.Fatalf("ensureCapacity after fill: %v", err)
	}

	if len(a.slots) != initialSegmentCapacity*expandFactor {
		t.Fatalf("want grown capacity %d, got %d", initialSegmentCapacity*expandFactor, len(a.slots))
	}
}

func TestSegmentArenaReleaseBumpsGeneration(t *testing.T) {
	a := newSegmentArena()
	_ = a.ensureCapacity()

	idx := a.acquire()
	g0 := a.generation(idx)

	a.release(idx)

	reacquired := a.acquire()
	if reacquired != idx {
		t.Fatalf("want the released slot to be reused first (LIFO free list)")
	}

	if a.generation(idx) == g0 {
		t.Fatalf("generation did not change after release")
	}
}

func TestSegmentListSplitAndCoalesce(t *testing.T) {
	arena := newSegmentArena()

	list, err := newSegmentList(arena, 1000)
	if err != nil {
		t.Fatalf("newSegmentList: %v", err)
	}

	root := list.head

	tail, err := list.split(root, 400)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	rootSeg := arena.get(root)
	tailSeg := arena.get(tail)

	if rootSeg.size != 400 || !rootSeg.allocated {
		t.Fatalf("root after split: %+v", rootSeg)
	}

	if tailSeg.size != 600 || tailSeg.allocated || tailSeg.base != 400 {
		t.Fatalf("tail after split: %+v", tailSeg)
	}

	if list.count != 2 {
		t.Fatalf("want 2 live segments, got %d", list.count)
	}

	rootSeg.allocated = false
	list.coalesceWithNext(root)

	merged := arena.get(root)
	if merged.size != 1000 || merged.next != noSeg {
		t.Fatalf("after coalesce: %+v", merged)
	}

	if list.count != 1 {
		t.Fatalf("want 1 live segment after coalesce, got %d", list.count)
	}
}

func TestSegmentListFirstFreeSufficient(t *testing.T) {
	arena := newSegmentArena()

	list, err := newSegmentList(arena, 300)
	if err != nil {
		t.Fatal(err)
	}

	remainder, err := list.split(list.head, 100)
	if err != nil {
		t.Fatal(err)
	}

	// Segments are now [100 allocated][200 free]; the only sufficient
	// free segment is the remainder produced by the split.
	idx, ok := list.firstFreeSufficient(50)
	if !ok || idx != remainder {
		t.Fatalf("want the remainder segment, got idx=%d ok=%v", idx, ok)
	}
}
