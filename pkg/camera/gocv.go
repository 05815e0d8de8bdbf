package camera

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrCodeEU/facetrack/pkg/logging"
	"gocv.io/x/gocv"
)

// GocvSource opens cameras through OpenCV.
type GocvSource struct {
	// FrameTimeout bounds Grab.
	FrameTimeout time.Duration
	// PollInterval is the pause after a read that returned no image.
	PollInterval time.Duration
}

// NewGocvSource creates a source with the given grab timeout and poll interval.
func NewGocvSource(frameTimeout, pollInterval time.Duration) *GocvSource {
	if frameTimeout <= 0 {
		frameTimeout = 500 * time.Millisecond
	}
	if pollInterval <= 0 {
		pollInterval = 10 * time.Millisecond
	}
	return &GocvSource{FrameTimeout: frameTimeout, PollInterval: pollInterval}
}

// List enumerates cameras.
func (s *GocvSource) List() ([]DeviceInfo, error) {
	return ListCameras()
}

// Formats lists the formats of device.
func (s *GocvSource) Formats(device string) ([]VideoFormat, error) {
	return ListFormats(device)
}

// Open opens device and starts reading frames in the background. A nil
// format keeps the driver's default.
func (s *GocvSource) Open(device string, format *VideoFormat) (Device, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCameraNotFound, device, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrCameraNotOpen, device)
	}

	if format != nil && format.Width > 0 && format.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(format.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(format.Height))
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &gocvDevice{
		vc:      vc,
		info:    DeviceInfo{Path: device, Name: device},
		slot:    newFrameSlot(),
		timeout: s.FrameTimeout,
		poll:    s.PollInterval,
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     logging.Component("camera").WithField("device", device),
	}
	go d.readLoop(ctx)

	d.log.WithFields(logging.Fields{
		"width":  vc.Get(gocv.VideoCaptureFrameWidth),
		"height": vc.Get(gocv.VideoCaptureFrameHeight),
	}).Info("Camera opened")

	return d, nil
}

type gocvDevice struct {
	vc      *gocv.VideoCapture
	info    DeviceInfo
	slot    *frameSlot
	timeout time.Duration
	poll    time.Duration
	seq     uint64
	dropped atomic.Uint64

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	log       *logging.Entry
}

func (d *gocvDevice) readLoop(ctx context.Context) {
	defer close(d.done)

	mat := gocv.NewMat()
	defer mat.Close()

	for ctx.Err() == nil {
		if ok := d.vc.Read(&mat); !ok || mat.Empty() {
			time.Sleep(d.poll)
			continue
		}

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
		if err != nil {
			d.log.WithError(err).Debug("Failed to encode frame")
			continue
		}
		data := bytes.Clone(buf.GetBytes())
		buf.Close()

		d.seq++
		frame := &Frame{
			Data:      data,
			Width:     mat.Cols(),
			Height:    mat.Rows(),
			Seq:       d.seq,
			Timestamp: time.Now(),
		}
		if d.slot.publish(frame) {
			d.dropped.Add(1)
		}
	}
}

func (d *gocvDevice) Grab(ctx context.Context) (*Frame, error) {
	if d.closed.Load() {
		return nil, ErrCameraNotOpen
	}
	return d.slot.wait(ctx, d.timeout)
}

func (d *gocvDevice) Info() DeviceInfo {
	return d.info
}

// Close stops the reader and releases the capture. The reader exits after
// the read in flight returns.
func (d *gocvDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.cancel()
		<-d.done
		err = d.vc.Close()
		d.log.WithField("dropped_frames", d.dropped.Load()).Info("Camera closed")
	})
	return err
}
