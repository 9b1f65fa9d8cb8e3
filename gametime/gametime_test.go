// SPDX-License-Identifier: GPL-2.0-or-later

package gametime

import (
	"testing"
	"time"
)

func TestUpdateTime(t *testing.T) {
	start := time.Unix(100, 0)
	h := New(start)
	for _, tc := range []struct {
		after     time.Duration
		fps       float64
		want      bool
		frameTime time.Duration
	}{
		{5 * time.Millisecond, 100, false, 100 * time.Millisecond},
		{10 * time.Millisecond, 100, true, 10 * time.Millisecond},
		{12 * time.Millisecond, 5000, true, 2 * time.Millisecond},
		{20 * time.Millisecond, 1, false, 2 * time.Millisecond},
		{2 * time.Second, 1, true, 100 * time.Millisecond},
	} {
		got := h.UpdateTime(start.Add(tc.after), tc.fps)
		if got != tc.want {
			t.Errorf("UpdateTime(+%v, %v)=%v, want %v", tc.after, tc.fps, got, tc.want)
		}
		if h.FrameTime() != tc.frameTime {
			t.Errorf("FrameTime() after +%v = %v, want %v", tc.after, h.FrameTime(), tc.frameTime)
		}
	}
	if h.FrameCount() != 3 {
		t.Errorf("FrameCount()=%v, want 3", h.FrameCount())
	}
}
