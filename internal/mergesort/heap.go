// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package mergesort

// cursorHeap is a min-heap of cursor indices ordered by each cursor's head
// value. The cursors themselves never move.
type cursorHeap struct {
	cursors []cursor
	idx     []int
}

func (h *cursorHeap) Len() int { return len(h.idx) }
func (h *cursorHeap) Less(i, j int) bool {
	return h.cursors[h.idx[i]].head < h.cursors[h.idx[j]].head
}
func (h *cursorHeap) Swap(i, j int) { h.idx[i], h.idx[j] = h.idx[j], h.idx[i] }
func (h *cursorHeap) Push(x any)    { h.idx = append(h.idx, x.(int)) }
func (h *cursorHeap) Pop() any {
	n := len(h.idx)
	v := h.idx[n-1]
	h.idx = h.idx[:n-1]
	return v
}
