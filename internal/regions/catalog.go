// Package regions holds the fixed envelope windows read from every page.
//
// Coordinates are pixels on the rotated 300 DPI page. They describe a physical
// layout, so changing them means redeploying.
package regions

import (
	"fmt"
	"image"
)

// Region is a named rectangle in page pixel coordinates.
type Region struct {
	Name   string
	X      int
	Y      int
	Width  int
	Height int
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Validate reports whether the region has a positive area.
func (r Region) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("region %q: width and height must be positive, got %dx%d", r.Name, r.Width, r.Height)
	}
	return nil
}

// Fits reports whether the region lies within bounds.
func (r Region) Fits(bounds image.Rectangle) bool {
	return r.Rect().In(bounds)
}

var (
	Top    = Region{Name: "top", X: 750, Y: 760, Width: 919, Height: 260}
	Bottom = Region{Name: "bottom", X: 750, Y: 2035, Width: 919, Height: 265}
)

// Catalog returns the regions in extraction order.
func Catalog() []Region {
	return []Region{Top, Bottom}
}

// Lookup finds a catalog region by name.
func Lookup(name string) (Region, bool) {
	for _, r := range Catalog() {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// Label builds the row label for a page (1-based) and region, e.g. "scan.png (page1_top)".
func Label(filename string, page int, r Region) string {
	return fmt.Sprintf("%s (page%d_%s)", filename, page, r.Name)
}
