package camera

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// execCommand is replaced in tests.
var execCommand = exec.Command

// globDevices is replaced in tests.
var globDevices = filepath.Glob

var (
	formatLine = regexp.MustCompile(`^\[\d+\]:\s+'(\w+)'`)
	sizeLine   = regexp.MustCompile(`^Size:\s+\w+\s+(\d+)x(\d+)`)
)

// ListCameras enumerates capture devices with v4l2-ctl, falling back to the
// /dev/video* nodes when v4l2-ctl is unavailable.
func ListCameras() ([]DeviceInfo, error) {
	out, err := execCommand("v4l2-ctl", "--list-devices").Output()
	if err == nil {
		if devices := parseDeviceList(out); len(devices) > 0 {
			return devices, nil
		}
	}

	paths, gerr := globDevices("/dev/video*")
	if gerr != nil {
		return nil, fmt.Errorf("failed to enumerate cameras: %w", gerr)
	}
	sort.Strings(paths)

	devices := make([]DeviceInfo, 0, len(paths))
	for _, p := range paths {
		devices = append(devices, DeviceInfo{Path: p, Name: p})
	}
	return devices, nil
}

// parseDeviceList reads "v4l2-ctl --list-devices" output. Each card lists
// several nodes; the first /dev/video node is the capture node.
func parseDeviceList(out []byte) []DeviceInfo {
	var devices []DeviceInfo
	var card string
	taken := false

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] != ' ' && line[0] != '\t' {
			card = strings.TrimSuffix(strings.TrimSpace(line), ":")
			if i := strings.Index(card, " ("); i > 0 {
				card = card[:i]
			}
			taken = false
			continue
		}
		node := strings.TrimSpace(line)
		if taken || !strings.HasPrefix(node, "/dev/video") {
			continue
		}
		devices = append(devices, DeviceInfo{Path: node, Name: card})
		taken = true
	}
	return devices
}

// ListFormats returns the capture formats the device reports.
func ListFormats(device string) ([]VideoFormat, error) {
	out, err := execCommand("v4l2-ctl", "--device="+device, "--list-formats-ext").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list formats of %s: %w", device, err)
	}
	return parseFormats(out), nil
}

func parseFormats(out []byte) []VideoFormat {
	var formats []VideoFormat
	var pixel string

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := formatLine.FindStringSubmatch(line); m != nil {
			pixel = m[1]
			continue
		}
		if m := sizeLine.FindStringSubmatch(line); m != nil && pixel != "" {
			w, _ := strconv.Atoi(m[1])
			h, _ := strconv.Atoi(m[2])
			formats = append(formats, VideoFormat{PixelFormat: pixel, Width: w, Height: h})
		}
	}
	return formats
}
