// SPDX-License-Identifier: GPL-2.0-or-later

// Package gametime paces host frames.
package gametime

import (
	"time"
)

const (
	minFPS = 10
	maxFPS = 1000

	minFrame = time.Millisecond
	maxFrame = 100 * time.Millisecond
)

type GameTime struct {
	start      time.Time
	time       time.Duration
	oldTime    time.Duration
	frameTime  time.Duration
	frameCount int
}

func New(start time.Time) *GameTime {
	h := &GameTime{start: start}
	h.Reset()
	return h
}

func (h *GameTime) Reset() {
	h.frameTime = maxFrame
}

func (h *GameTime) Time() time.Duration      { return h.time }
func (h *GameTime) OldTime() time.Duration   { return h.oldTime }
func (h *GameTime) FrameTime() time.Duration { return h.frameTime }
func (h *GameTime) FrameCount() int          { return h.frameCount }

// UpdateTime moves the clock to now.
// Returns false if the frame would exceed fps, which is clamped to [10,1000].
func (h *GameTime) UpdateTime(now time.Time, fps float64) bool {
	h.time = now.Sub(h.start)
	fps = min(max(fps, minFPS), maxFPS)
	if h.time-h.oldTime < time.Duration(float64(time.Second)/fps) {
		return false
	}
	h.frameTime = min(max(h.time-h.oldTime, minFrame), maxFrame)
	h.oldTime = h.time
	h.frameCount++
	return true
}
