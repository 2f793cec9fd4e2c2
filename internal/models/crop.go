package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Crop is a normalized (0-1) region of each video frame
type Crop struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FullFrame keeps the whole picture
var FullFrame = Crop{Left: 0, Top: 0, Width: 1, Height: 1}

// ParseCrop parses "left,top,width,height"
func ParseCrop(s string) (Crop, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Crop{}, &ConfigurationError{Reason: fmt.Sprintf(`crop must be "left,top,width,height", e.g. "0.35,0,0.65,1": got %q`, s)}
	}

	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Crop{}, &ConfigurationError{Reason: fmt.Sprintf("crop item %d is not a number: %q", i+1, strings.TrimSpace(p))}
		}
		vals[i] = v
	}

	c := Crop{Left: vals[0], Top: vals[1], Width: vals[2], Height: vals[3]}
	if err := c.Validate(); err != nil {
		return Crop{}, err
	}
	return c, nil
}

// Validate enforces the crop rectangle bounds
func (c Crop) Validate() error {
	for _, v := range []float64{c.Left, c.Top, c.Width, c.Height} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return &ConfigurationError{Reason: fmt.Sprintf("crop values must be within [0,1]: %s", c)}
		}
	}
	if c.Width <= 0 || c.Height <= 0 {
		return &ConfigurationError{Reason: "crop width and height must be greater than 0"}
	}
	// Small epsilon so "0.265,0,0.735,1" is not rejected by float rounding
	const eps = 1e-9
	if c.Left+c.Width > 1+eps || c.Top+c.Height > 1+eps {
		return &ConfigurationError{Reason: fmt.Sprintf("left+width and top+height must not exceed 1: %s", c)}
	}
	return nil
}

// String formats the crop the way --crop accepts it
func (c Crop) String() string {
	return strings.Join([]string{
		strconv.FormatFloat(c.Left, 'f', -1, 64),
		strconv.FormatFloat(c.Top, 'f', -1, 64),
		strconv.FormatFloat(c.Width, 'f', -1, 64),
		strconv.FormatFloat(c.Height, 'f', -1, 64),
	}, ",")
}

// FilterArgs returns the ffmpeg crop filter arguments w:h:x:y in input-relative expressions
func (c Crop) FilterArgs() string {
	return fmt.Sprintf("iw*%s:ih*%s:iw*%s:ih*%s",
		strconv.FormatFloat(c.Width, 'f', -1, 64),
		strconv.FormatFloat(c.Height, 'f', -1, 64),
		strconv.FormatFloat(c.Left, 'f', -1, 64),
		strconv.FormatFloat(c.Top, 'f', -1, 64),
	)
}

// FilterExpr returns the full ffmpeg crop filter
func (c Crop) FilterExpr() string {
	return "crop=" + c.FilterArgs()
}

// IsFull reports whether the crop keeps the whole frame
func (c Crop) IsFull() bool {
	return c == FullFrame
}
