package main

import (
	"fmt"

	"github.com/MrCodeEU/facetrack/pkg/camera"
	"github.com/MrCodeEU/facetrack/pkg/logging"
)

func cmdCameras(args []string) error {
	source := newCameraSource()

	devices, err := source.List()
	if err != nil {
		return fmt.Errorf("failed to list cameras: %w", err)
	}
	if len(devices) == 0 {
		fmt.Println("No cameras found.")
		return nil
	}

	selected, _ := camera.SelectDevice(devices, cfg.Camera.Device)

	fmt.Println("Cameras:")
	for _, dev := range devices {
		marker := " "
		if dev.Path == selected.Path {
			marker = "*"
		}
		fmt.Printf(" %s %s\n", marker, dev)

		formats, err := source.Formats(dev.Path)
		if err != nil {
			logging.WithError(err).Debugf("No formats for %s", dev.Path)
			continue
		}
		best, ok := camera.BestFormat(formats)
		for _, f := range formats {
			note := ""
			if ok && f == best {
				note = " (largest)"
			}
			fmt.Printf("      %s%s\n", f, note)
		}
	}
	fmt.Println("\n* used by 'facetrack live'")
	return nil
}
