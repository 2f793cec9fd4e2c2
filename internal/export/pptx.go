package export

import (
	"fmt"

	gopresentation "github.com/VantageDataChat/GoPPT"
)

// 16:9 slide in EMU
const (
	slideWidthEMU  = 12192000
	slideHeightEMU = 6858000
)

// WritePPTX writes a 16:9 presentation with one picture per slide.
// Pictures keep their aspect ratio and are centered.
func WritePPTX(images []string, output string) error {
	if len(images) == 0 {
		return fmt.Errorf("no images to write")
	}

	pres := gopresentation.New()
	pres.GetLayout().SetLayout(gopresentation.LayoutScreen16x9)
	pres.GetDocumentProperties().Creator = "slidesweep"

	for i, path := range images {
		w, h, err := imageSize(path)
		if err != nil {
			return err
		}
		if _, err := imageType(path); err != nil {
			return err
		}

		// New starts with one blank slide
		slide := pres.GetActiveSlide()
		if i > 0 {
			slide = pres.CreateSlide()
		}

		pic, err := slide.AddImage(path)
		if err != nil {
			return fmt.Errorf("failed to add %s to pptx: %w", path, err)
		}
		offX, offY, cx, cy := fitRect(int64(w), int64(h), slideWidthEMU, slideHeightEMU)
		pic.SetOffsetX(offX).SetOffsetY(offY).SetWidth(cx).SetHeight(cy)
		pic.SetName(fmt.Sprintf("Page %d", i+1))
	}

	writer, err := gopresentation.NewWriter(pres, gopresentation.WriterPowerPoint2007)
	if err != nil {
		return fmt.Errorf("failed to create pptx writer: %w", err)
	}
	if err := writer.Save(output); err != nil {
		return fmt.Errorf("failed to write pptx: %w", err)
	}
	return nil
}

// fitRect scales w x h into the box, centered, keeping the aspect ratio
func fitRect(w, h, boxW, boxH int64) (offX, offY, cx, cy int64) {
	if w*boxH > h*boxW {
		cx = boxW
		cy = h * boxW / w
	} else {
		cy = boxH
		cx = w * boxH / h
	}
	return (boxW - cx) / 2, (boxH - cy) / 2, cx, cy
}
