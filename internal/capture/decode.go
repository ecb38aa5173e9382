package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"
)

// ErrEmptyFrame is returned when an uploaded frame carries no data.
var ErrEmptyFrame = errors.New("frame is empty")

// Decode turns an encoded JPEG or PNG frame sent by the browser into a Frame.
func Decode(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrEmptyFrame
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if format != "jpeg" && format != "png" {
		return Frame{}, fmt.Errorf("unsupported frame format %q", format)
	}

	return Frame{Image: img, Timestamp: time.Now()}, nil
}

// DecodeDataURL decodes a "data:image/...;base64," URL as produced by
// canvas.toDataURL. A bare base64 payload is accepted too.
func DecodeDataURL(s string) (Frame, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return Frame{}, errors.New("malformed data URL")
		}
		if !strings.HasSuffix(s[:i], ";base64") {
			return Frame{}, errors.New("data URL is not base64 encoded")
		}
		s = s[i+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Frame{}, fmt.Errorf("decode base64 frame: %w", err)
	}
	return Decode(data)
}
