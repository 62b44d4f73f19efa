// Package cloud owns the imported point cloud: an immutable, ordered set of
// 3D points with bounding metadata. The cloud is created once on import and
// never mutated; every downstream artifact references its points by index.
package cloud

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/cloud2mesh/internal/geom"
)

// Cloud is an immutable point cloud. The zero value is empty and unusable;
// construct with New or ReadASC.
type Cloud struct {
	pts      []geom.Point3
	min, max geom.Point3
}

// New builds a Cloud from pts. The slice is copied so later edits by the
// caller cannot reach the pipeline.
func New(pts []geom.Point3) (*Cloud, error) {
	if len(pts) == 0 {
		return nil, fmt.Errorf("empty point cloud")
	}
	c := &Cloud{pts: make([]geom.Point3, len(pts))}
	copy(c.pts, pts)
	c.min, c.max = c.pts[0], c.pts[0]
	for _, p := range c.pts[1:] {
		if p.X < c.min.X {
			c.min.X = p.X
		}
		if p.X > c.max.X {
			c.max.X = p.X
		}
		if p.Y < c.min.Y {
			c.min.Y = p.Y
		}
		if p.Y > c.max.Y {
			c.max.Y = p.Y
		}
		if p.Z < c.min.Z {
			c.min.Z = p.Z
		}
		if p.Z > c.max.Z {
			c.max.Z = p.Z
		}
	}
	return c, nil
}

// Len returns the number of points.
func (c *Cloud) Len() int { return len(c.pts) }

// At returns point i.
func (c *Cloud) At(i int) geom.Point3 { return c.pts[i] }

// Points returns the backing point slice. Callers must treat it as
// read-only.
func (c *Cloud) Points() []geom.Point3 { return c.pts }

// Min returns the lower corner of the bounding box.
func (c *Cloud) Min() geom.Point3 { return c.min }

// Max returns the upper corner of the bounding box.
func (c *Cloud) Max() geom.Point3 { return c.max }

// ZMin returns the smallest Z coordinate in the cloud.
func (c *Cloud) ZMin() float64 { return c.min.Z }

// ZMax returns the largest Z coordinate in the cloud.
func (c *Cloud) ZMax() float64 { return c.max.Z }

// BoundsXY returns the XY footprint of the cloud.
func (c *Cloud) BoundsXY() geom.Rect2 {
	return geom.Rect2{MinX: c.min.X, MinY: c.min.Y, MaxX: c.max.X, MaxY: c.max.Y}
}

// ReadASC parses a whitespace-separated "x y z" point file (the CloudCompare
// .asc convention). Blank lines and lines starting with '#' or "//" are
// skipped; extra columns (intensity, colour) are ignored.
func ReadASC(r io.Reader) (*Cloud, error) {
	var pts []geom.Point3
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 columns, got %d", lineNo, len(fields))
		}
		var p geom.Point3
		var err error
		if p.X, err = strconv.ParseFloat(fields[0], 64); err != nil {
			return nil, fmt.Errorf("line %d: bad x %q: %w", lineNo, fields[0], err)
		}
		if p.Y, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return nil, fmt.Errorf("line %d: bad y %q: %w", lineNo, fields[1], err)
		}
		if p.Z, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("line %d: bad z %q: %w", lineNo, fields[2], err)
		}
		pts = append(pts, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read point file: %w", err)
	}
	return New(pts)
}

// LoadASC reads a point file from disk.
func LoadASC(path string) (*Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := ReadASC(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
