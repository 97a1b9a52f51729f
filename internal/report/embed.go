package report

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
)

// Embedder places a PNG picture at a cell.
type Embedder interface {
	Embed(f *excelize.File, sheet, cell string, png []byte) error
}

func pictureFormat() *excelize.GraphicOptions {
	return &excelize.GraphicOptions{
		ScaleX:          1,
		ScaleY:          1,
		LockAspectRatio: true,
		Positioning:     "oneCell",
	}
}

// MemoryEmbedder hands the bytes straight to excelize.
type MemoryEmbedder struct{}

func (MemoryEmbedder) Embed(f *excelize.File, sheet, cell string, png []byte) error {
	return f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
		Extension: ".png",
		File:      png,
		Format:    pictureFormat(),
	})
}

// TempFileEmbedder writes the picture to Dir first and embeds it by path, for
// readers that only accept files. The temp file is removed before returning.
type TempFileEmbedder struct {
	Dir string // "" = os.TempDir()
}

func (e TempFileEmbedder) Embed(f *excelize.File, sheet, cell string, png []byte) error {
	tmp, err := os.CreateTemp(e.Dir, "preview-*.png")
	if err != nil {
		return fmt.Errorf("create preview file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(png); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write preview file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return f.AddPicture(sheet, cell, name, pictureFormat())
}

// EmbedderFor maps EMBED_MODE onto an Embedder.
func EmbedderFor(mode, dir string) (Embedder, error) {
	switch mode {
	case "", "memory":
		return MemoryEmbedder{}, nil
	case "tempfile":
		return TempFileEmbedder{Dir: dir}, nil
	default:
		return nil, fmt.Errorf("unknown embed mode %q", mode)
	}
}
