package regions

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogOrderAndValidity(t *testing.T) {
	cat := Catalog()
	require.Len(t, cat, 2)
	assert.Equal(t, "top", cat[0].Name)
	assert.Equal(t, "bottom", cat[1].Name)
	for _, r := range cat {
		assert.NoError(t, r.Validate())
	}
}

func TestCatalogIsACopy(t *testing.T) {
	cat := Catalog()
	cat[0].X = 0
	assert.Equal(t, 750, Catalog()[0].X)
}

func TestLookup(t *testing.T) {
	r, ok := Lookup("bottom")
	require.True(t, ok)
	assert.Equal(t, image.Rect(750, 2035, 1669, 2300), r.Rect())

	_, ok = Lookup("middle")
	assert.False(t, ok)
}

func TestValidateRejectsEmpty(t *testing.T) {
	assert.Error(t, Region{Name: "x", Width: 0, Height: 10}.Validate())
	assert.Error(t, Region{Name: "x", Width: 10, Height: -1}.Validate())
}

func TestFits(t *testing.T) {
	page := image.Rect(0, 0, 2200, 3400)
	assert.True(t, Top.Fits(page))
	assert.True(t, Bottom.Fits(page))
	assert.False(t, Bottom.Fits(image.Rect(0, 0, 1700, 2000)))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "scan.png (page1_top)", Label("scan.png", 1, Top))
	assert.Equal(t, "a.pdf (page3_bottom)", Label("a.pdf", 3, Bottom))
}
