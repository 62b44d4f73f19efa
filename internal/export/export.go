// Package export writes pipeline results to interchange formats: the
// generated mesh as an Abaqus .inp input deck and point clouds as plain
// .asc text.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/banshee-data/cloud2mesh/internal/cloud"
	"github.com/banshee-data/cloud2mesh/internal/mesh"
)

// WriteINP writes the mesh as an Abaqus input deck: one part holding the
// node table, the C3D8 element connectivity and one element set per source
// slice, instanced once into the assembly.
func WriteINP(w io.Writer, m *mesh.Mesh) error {
	bw := bufio.NewWriter(w)

	fmt.Fprint(bw, "*Heading\n** Generated by: cloud2mesh\n")
	fmt.Fprint(bw, "**\n** PARTS\n**\n*Part, name=PART-1\n")

	fmt.Fprint(bw, "*Node\n")
	for _, n := range m.Nodes {
		fmt.Fprintf(bw, "      %d,   %.8f,   %.8f,   %.8f\n", n.ID, n.X, n.Y, n.Z)
	}

	fmt.Fprint(bw, "*Element, type=C3D8\n")
	for _, e := range m.Elements {
		fmt.Fprintf(bw, "%d, %d, %d, %d, %d, %d, %d, %d, %d\n",
			e.ID, e.Nodes[0], e.Nodes[1], e.Nodes[2], e.Nodes[3],
			e.Nodes[4], e.Nodes[5], e.Nodes[6], e.Nodes[7])
	}

	writeElsets(bw, m)

	fmt.Fprint(bw, "*End Part\n")
	fmt.Fprint(bw, "**\n**\n** ASSEMBLY\n**\n*Assembly, name=Assembly\n")
	fmt.Fprint(bw, "**\n*Instance, name=WHOLE_MODEL, part=PART-1\n*End Instance\n")
	fmt.Fprint(bw, "**\n*End Assembly\n")

	return bw.Flush()
}

// writeElsets emits one element set per source slice, at most 16 IDs per
// line as the deck format requires.
func writeElsets(w io.Writer, m *mesh.Mesh) {
	bySlice := m.ElementIDsBySlice()
	slices := make([]int, 0, len(bySlice))
	for i := range bySlice {
		slices = append(slices, i)
	}
	sort.Ints(slices)

	for _, i := range slices {
		fmt.Fprintf(w, "*Elset, elset=SLICE_%d\n", i)
		ids := bySlice[i]
		for k := 0; k < len(ids); k += 16 {
			end := k + 16
			if end > len(ids) {
				end = len(ids)
			}
			for j, id := range ids[k:end] {
				if j > 0 {
					fmt.Fprint(w, ", ")
				}
				fmt.Fprintf(w, "%d", id)
			}
			fmt.Fprint(w, "\n")
		}
	}
}

// SaveINP writes the mesh deck to a file.
func SaveINP(path string, m *mesh.Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteINP(f, m); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteASC writes the cloud as whitespace-separated x y z lines, the same
// format ReadASC accepts.
func WriteASC(w io.Writer, c *cloud.Cloud) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < c.Len(); i++ {
		p := c.At(i)
		fmt.Fprintf(bw, "%.6f %.6f %.6f\n", p.X, p.Y, p.Z)
	}
	return bw.Flush()
}

// SaveASC writes the cloud to a file.
func SaveASC(path string, c *cloud.Cloud) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteASC(f, c); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
