// Package frame drives the render loop: a ring of in-flight slots, the
// per-tick acquire/record/submit/present protocol, and chain rebuilds.
package frame

import "fmt"

// SlotState is where a slot is in the current tick.
type SlotState int

const (
	Idle SlotState = iota
	WaitingForFence
	Acquiring
	Recording
	Submitted
	Presenting
)

func (s SlotState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case WaitingForFence:
		return "WaitingForFence"
	case Acquiring:
		return "Acquiring"
	case Recording:
		return "Recording"
	case Submitted:
		return "Submitted"
	case Presenting:
		return "Presenting"
	}
	return fmt.Sprintf("SlotState(%d)", int(s))
}

// ChainStatus is the presentation engine's verdict on the chain after an
// acquire or present.
type ChainStatus int

const (
	ChainOK ChainStatus = iota
	ChainSuboptimal
	ChainOutOfDate
)

func (s ChainStatus) String() string {
	switch s {
	case ChainOK:
		return "ok"
	case ChainSuboptimal:
		return "suboptimal"
	case ChainOutOfDate:
		return "out of date"
	}
	return fmt.Sprintf("ChainStatus(%d)", int(s))
}
