package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// streamInterval paces the MJPEG stream at roughly 15 FPS.
const streamInterval = 66 * time.Millisecond

// Preview holds the latest annotated preview frame as JPEG bytes.
type Preview struct {
	mu    sync.RWMutex
	frame []byte
	seq   uint64
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{}
}

// Publish replaces the latest frame. Preview keeps jpeg, so callers must not
// reuse the slice.
func (p *Preview) Publish(jpeg []byte) {
	p.mu.Lock()
	p.frame = jpeg
	p.seq++
	p.mu.Unlock()
}

// Latest returns the latest frame and its sequence number. The sequence is
// zero until the first Publish.
func (p *Preview) Latest() ([]byte, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frame, p.seq
}

// StreamHandler serves the preview frames as MJPEG.
type StreamHandler struct {
	preview  *Preview
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler reading from preview.
func NewStreamHandler(preview *Preview) *StreamHandler {
	return &StreamHandler{preview: preview, interval: streamInterval}
}

// ServeHTTP streams MJPEG frames until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var sent uint64
	for {
		if frame, seq := h.preview.Latest(); seq != sent {
			if err := writePart(w, frame); err != nil {
				return
			}
			sent = seq

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// writePart writes one multipart JPEG part.
func writePart(w http.ResponseWriter, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\r\n")
	return err
}
