// Package crit defines the closed set of geometric criticality kinds the
// pipeline can report. A criticality is a detected defect (self-crossing,
// isolated segment, unclosed loop, branchpoint) that blocks automatic
// progression of the affected geometry only; it is never fatal to the slice
// batch, and it always carries the exact coordinates the editor needs to
// correct the source artifact.
package crit

import (
	"fmt"
	"strings"

	"github.com/banshee-data/cloud2mesh/internal/geom"
)

// Kind identifies one criticality category.
type Kind int

const (
	// SelfIntersection: a closed polyline crosses itself.
	SelfIntersection Kind = iota
	// IsolatedPoint: a centroid that could not be chained to any neighbour.
	IsolatedPoint
	// UnclosedChain: an open polyline whose ends could not be joined.
	UnclosedChain
	// Branchpoint: a centroid with three or more candidate continuations.
	Branchpoint
	// EmptySlice: a slice that produced no usable geometry at some stage.
	EmptySlice
)

var kindNames = map[Kind]string{
	SelfIntersection: "self-intersection",
	IsolatedPoint:    "isolated-point",
	UnclosedChain:    "unclosed-chain",
	Branchpoint:      "branchpoint",
	EmptySlice:       "empty-slice",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Criticality is one reported defect, pinned to a slice and to the exact
// coordinates involved.
type Criticality struct {
	Slice  int           `json:"slice"`
	Kind   Kind          `json:"kind"`
	Coords []geom.Point2 `json:"coords,omitempty"`
	Detail string        `json:"detail,omitempty"`
}

func (c Criticality) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "slice %d: %s", c.Slice, c.Kind)
	if len(c.Coords) > 0 {
		b.WriteString(" at")
		for _, p := range c.Coords {
			fmt.Fprintf(&b, " (%.4f, %.4f)", p.X, p.Y)
		}
	}
	if c.Detail != "" {
		fmt.Fprintf(&b, ": %s", c.Detail)
	}
	return b.String()
}
