package session

import (
	"image"
	"time"

	"github.com/MrCodeEU/facetrack/pkg/camera"
	"github.com/MrCodeEU/facetrack/pkg/config"
	"github.com/MrCodeEU/facetrack/pkg/logging"
	"github.com/MrCodeEU/facetrack/pkg/recognition"
	"github.com/MrCodeEU/facetrack/pkg/storage"
)

// Open sets a session up from configuration: it checks activation, selects
// and opens the camera and loads the identity store. Setup failures are
// returned as fatal *Error values and leave nothing open except the engine,
// which stays with the caller.
func Open(cfg *config.Config, engine recognition.Engine, source camera.Source) (*Session, error) {
	log := logging.Component("session")

	if !engine.Activated() {
		return nil, NewError(ErrCodeActivation, recognition.ErrNotActivated)
	}

	devices, err := source.List()
	if err != nil {
		return nil, NewError(ErrCodeNoCamera, err)
	}
	device, err := camera.SelectDevice(devices, cfg.Camera.Device)
	if err != nil {
		return nil, NewError(ErrCodeNoCamera, err)
	}

	format := chooseFormat(cfg.Camera, source, device.Path)
	if format != nil {
		log.WithField("format", format.String()).Debug("Selected camera format")
	}

	var sealer *storage.Sealer
	if cfg.Storage.EncryptionEnabled {
		sealer, err = storage.NewSealer()
		if err != nil {
			return nil, err
		}
	}

	store, err := storage.Load(engine, cfg.MemoryPath(), sealer)
	if err != nil {
		return nil, err
	}

	dev, err := source.Open(device.Path, format)
	if err != nil {
		_ = store.Close()
		return nil, NewError(ErrCodeCameraOpen, err)
	}

	s, err := New(engine, dev, store, Options{
		MemoryPath:        cfg.MemoryPath(),
		TrackerParameters: cfg.Engine.TrackerParameters,
		DisplaySize:       image.Pt(cfg.Display.Width, cfg.Display.Height),
		PollInterval:      time.Duration(cfg.Camera.PollIntervalMs) * time.Millisecond,
	})
	if err != nil {
		_ = dev.Close()
		_ = store.Close()
		return nil, err
	}
	return s, nil
}

// chooseFormat returns the explicit size from the config, else the largest
// format the camera reports when preferred, else nil for the driver default.
func chooseFormat(cfg config.CameraConfig, source camera.Source, device string) *camera.VideoFormat {
	if cfg.Width > 0 && cfg.Height > 0 {
		return &camera.VideoFormat{Width: cfg.Width, Height: cfg.Height}
	}
	if !cfg.PreferLargestFormat {
		return nil
	}

	formats, err := source.Formats(device)
	if err != nil {
		logging.Component("session").WithError(err).Debug("Camera formats unavailable")
		return nil
	}
	best, ok := camera.BestFormat(formats)
	if !ok {
		return nil
	}
	return &best
}
