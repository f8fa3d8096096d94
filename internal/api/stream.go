package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// mjpegBoundary separates frames in the multipart live stream.
const mjpegBoundary = "boothframe"

// streamFrameBuffer is the per-viewer frame backlog. A viewer slower
// than the camera drops frames rather than lagging behind live.
const streamFrameBuffer = 4

// handleLiveViewFrame returns a single JPEG frame from the live view,
// starting the stream if necessary.
func (s *Server) handleLiveViewFrame(w http.ResponseWriter, r *http.Request) {
	stream, err := s.capture.StartLiveView(r.Context())
	if err != nil {
		writeCaptureError(w, err)
		return
	}

	frame, err := stream.GetFrame(r.Context())
	if err != nil {
		writeCaptureError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
	w.Header().Set("Cache-Control", "no-store")
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(frame)
}

// handleLiveViewStream serves the live view as an MJPEG stream
// (multipart/x-mixed-replace), the format kiosk browsers render
// natively in an <img> tag.
func (s *Server) handleLiveViewStream(w http.ResponseWriter, r *http.Request) {
	stream, err := s.capture.StartLiveView(r.Context())
	if err != nil {
		writeCaptureError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeInternalError(w, "streaming unsupported by connection")
		return
	}

	// The server write timeout would sever a long-lived stream.
	rc := http.NewResponseController(w)
	//nolint:errcheck // Deadline reset is best effort; write errors end the loop
	rc.SetWriteDeadline(time.Time{})

	frames := make(chan []byte, streamFrameBuffer)
	off := stream.OnFrame(func(frame []byte) {
		select {
		case frames <- frame:
		default:
			// Viewer lagging; skip the frame.
		}
	})
	defer off()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := writeMJPEGPart(w, frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeMJPEGPart writes one multipart frame section.
func writeMJPEGPart(w http.ResponseWriter, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
