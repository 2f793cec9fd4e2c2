// Package export turns extracted page images into slide documents.
package export

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
)

// imageSize reads the pixel dimensions of an image file without decoding it
func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, fmt.Errorf("image %s has no pixels", path)
	}
	return cfg.Width, cfg.Height, nil
}

func imageType(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "PNG", nil
	case ".jpg", ".jpeg":
		return "JPG", nil
	default:
		return "", fmt.Errorf("unsupported image type: %s", path)
	}
}

// WritePDF writes one page per image; every page takes the size of its image
// (one pixel per point)
func WritePDF(images []string, output string) error {
	if len(images) == 0 {
		return fmt.Errorf("no images to write")
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("slidesweep", true)

	for _, path := range images {
		w, h, err := imageSize(path)
		if err != nil {
			return err
		}
		typ, err := imageType(path)
		if err != nil {
			return err
		}

		pdf.AddPageFormat("P", fpdf.SizeType{Wd: float64(w), Ht: float64(h)})
		pdf.ImageOptions(path, 0, 0, float64(w), float64(h), false,
			fpdf.ImageOptions{ImageType: typ}, 0, "")

		if pdf.Err() {
			return fmt.Errorf("failed to add %s to pdf: %w", path, pdf.Error())
		}
	}

	if err := pdf.OutputFileAndClose(output); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
