package webmonitor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/monitor"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	frameWidth  = 640
	frameHeight = 480
)

func writeSSE(w http.ResponseWriter, data []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// streamSSEFromChannel writes each pre-serialized tick as an SSE event
// and sends a comment line when idle so proxies keep the stream open.
func streamSSEFromChannel(ctx context.Context, w http.ResponseWriter, eventCh <-chan *SerializedEvent, keepAlive time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	timer := time.NewTicker(keepAlive)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if err := writeSSE(w, event.JSONData); err != nil {
				logger.Debug("SSE", "Client disconnected during write: %v", err)
				return
			}
		case <-timer.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

var (
	barsOnce sync.Once
	barsImg  *image.RGBA
)

// colorBars returns the shared test pattern background
func colorBars() *image.RGBA {
	barsOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))

		// Color bars: White, Yellow, Cyan, Green, Magenta, Red, Blue, Black
		colors := []color.RGBA{
			{R: 255, G: 255, B: 255, A: 255},
			{R: 255, G: 255, B: 0, A: 255},
			{R: 0, G: 255, B: 255, A: 255},
			{R: 0, G: 255, B: 0, A: 255},
			{R: 255, G: 0, B: 255, A: 255},
			{R: 255, G: 0, B: 0, A: 255},
			{R: 0, G: 0, B: 255, A: 255},
			{R: 0, G: 0, B: 0, A: 255},
		}

		barWidth := frameWidth / len(colors)
		for i, c := range colors {
			r := image.Rect(i*barWidth, 0, (i+1)*barWidth, frameHeight)
			draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
		}
		barsImg = img
	})
	return barsImg
}

// drawTextWithBackground writes text in basicfont on a black box
func drawTextWithBackground(img draw.Image, x, y int, text string, fg color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	const pad = 4
	bg := image.Rect(x-pad, y-pad, x+width+pad, y+face.Height+pad)
	draw.Draw(img, bg, &image.Uniform{C: color.RGBA{A: 200}}, image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(text)
}

// renderFrame draws the simulated camera view with a status overlay
func renderFrame(snap monitor.Snapshot, now time.Time) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	draw.Draw(img, img.Bounds(), colorBars(), image.Point{}, draw.Src)

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	drawTextWithBackground(img, 10, 10, fmt.Sprintf("%s  Camera: %s", now.Format("2006/01/02 15:04:05"), snap.Location), white)

	hr := "--"
	if snap.Latest != nil && snap.Latest.Reading != nil {
		hr = fmt.Sprintf("%.0f", snap.Latest.Reading.HeartRate)
	}
	statusColor := white
	if snap.Status == monitor.StatusEpisode {
		statusColor = color.RGBA{R: 255, G: 64, B: 64, A: 255}
	}
	drawTextWithBackground(img, 10, 34, fmt.Sprintf("HR: %s BPM  Status: %s", hr, snap.Status), statusColor)

	if snap.Simulation {
		drawTextWithBackground(img, 10, frameHeight-26, "SIMULATED", color.RGBA{R: 255, G: 200, A: 255})
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// streamMJPEGFromChannel streams MJPEG from a channel (fanout pattern).
func streamMJPEGFromChannel(ctx context.Context, w http.ResponseWriter, frameCh <-chan []byte, fallback []byte) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	for {
		var jpegData []byte
		select {
		case <-ctx.Done():
			return
		case data, ok := <-frameCh:
			if !ok {
				return
			}
			jpegData = data
		case <-time.After(5 * time.Second):
			// No frame for 5 seconds, resend the fallback to keep the connection alive
			jpegData = fallback
		}
		if jpegData == nil {
			continue
		}

		if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
			logger.Debug("MJPEG", "Client disconnected during write: %v", err)
			return
		}
		if _, err := w.Write(jpegData); err != nil {
			logger.Debug("MJPEG", "Client disconnected during frame write: %v", err)
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			logger.Debug("MJPEG", "Client disconnected during delimiter write: %v", err)
			return
		}
		flusher.Flush()
	}
}
