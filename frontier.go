package main

import (
	"container/heap"
	"fmt"
)

// frontierEntry is one slot of the heap array
type frontierEntry[T comparable] struct {
	item     T
	priority float64
	seq      uint64 // insertion order, breaks priority ties
}

// frontierHeap implements heap.Interface. slots maps each item to its current
// index in entries and is rewritten on every swap.
type frontierHeap[T comparable] struct {
	entries []frontierEntry[T]
	slots   map[T]int
}

func (h *frontierHeap[T]) Len() int { return len(h.entries) }

func (h *frontierHeap[T]) Less(i, j int) bool {
	a, b := &h.entries[i], &h.entries[j]
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

func (h *frontierHeap[T]) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.slots[h.entries[i].item] = i
	h.slots[h.entries[j].item] = j
}

func (h *frontierHeap[T]) Push(x any) {
	e := x.(frontierEntry[T])
	h.slots[e.item] = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *frontierHeap[T]) Pop() any {
	n := len(h.entries)
	e := h.entries[n-1]
	h.entries[n-1] = frontierEntry[T]{}
	h.entries = h.entries[:n-1]
	delete(h.slots, e.item)
	return e
}

// Frontier is an indexed binary min-heap used as the A* open set.
// Equal priorities pop in insertion order.
type Frontier[T comparable] struct {
	h   frontierHeap[T]
	seq uint64
}

// NewFrontier creates an empty frontier with room for capacity items
func NewFrontier[T comparable](capacity int) *Frontier[T] {
	return &Frontier[T]{
		h: frontierHeap[T]{
			entries: make([]frontierEntry[T], 0, capacity),
			slots:   make(map[T]int, capacity),
		},
	}
}

// Len returns the number of queued items
func (f *Frontier[T]) Len() int { return len(f.h.entries) }

// Contains reports whether item is queued
func (f *Frontier[T]) Contains(item T) bool {
	_, ok := f.h.slots[item]
	return ok
}

// Priority returns the current priority of a queued item
func (f *Frontier[T]) Priority(item T) (float64, bool) {
	slot, ok := f.h.slots[item]
	if !ok {
		return 0, false
	}
	return f.h.entries[slot].priority, true
}

// Push queues an item. Pushing an item that is already queued panics;
// use DecreasePriority instead.
func (f *Frontier[T]) Push(item T, priority float64) {
	if f.h.slots == nil {
		f.h.slots = make(map[T]int)
	}
	if _, ok := f.h.slots[item]; ok {
		panic(fmt.Sprintf("frontier: push of already queued item %v", item))
	}
	heap.Push(&f.h, frontierEntry[T]{item: item, priority: priority, seq: f.seq})
	f.seq++
}

// PopMin removes and returns the item with the lowest priority. Panics when empty.
func (f *Frontier[T]) PopMin() (T, float64) {
	if len(f.h.entries) == 0 {
		panic("frontier: pop from empty frontier")
	}
	e := heap.Pop(&f.h).(frontierEntry[T])
	return e.item, e.priority
}

// Peek returns the lowest-priority item without removing it
func (f *Frontier[T]) Peek() (T, float64, bool) {
	if len(f.h.entries) == 0 {
		var zero T
		return zero, 0, false
	}
	e := f.h.entries[0]
	return e.item, e.priority, true
}

// DecreasePriority lowers the priority of a queued item and restores heap order.
// Panics if the item is not queued or the new priority is higher.
func (f *Frontier[T]) DecreasePriority(item T, priority float64) {
	slot, ok := f.h.slots[item]
	if !ok {
		panic(fmt.Sprintf("frontier: decrease of item %v that is not queued", item))
	}
	if priority > f.h.entries[slot].priority {
		panic(fmt.Sprintf("frontier: decrease of item %v from %v to larger %v",
			item, f.h.entries[slot].priority, priority))
	}
	f.h.entries[slot].priority = priority
	heap.Fix(&f.h, slot)
}

// Reset empties the frontier, keeping its allocations
func (f *Frontier[T]) Reset() {
	clear(f.h.entries)
	f.h.entries = f.h.entries[:0]
	clear(f.h.slots)
	f.seq = 0
}
