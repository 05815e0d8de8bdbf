package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func fakeExecCommand(command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	cmd := exec.Command(os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

func failingExecCommand(command string, args ...string) *exec.Cmd {
	cmd := fakeExecCommand(command, args...)
	cmd.Env = append(cmd.Env, "TEST_FAIL_V4L2=1")
	return cmd
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	// os.Args: [test_binary, -test.run=TestHelperProcess, --, command, args...]
	if len(os.Args) < 4 {
		os.Exit(1)
	}

	args := os.Args[3:]
	if args[0] != "v4l2-ctl" || os.Getenv("TEST_FAIL_V4L2") == "1" {
		os.Exit(1)
	}

	for _, arg := range args[1:] {
		switch arg {
		case "--list-devices":
			fmt.Println("Integrated Camera: Integrated C (usb-0000:00:14.0-1):")
			fmt.Println("\t/dev/video0")
			fmt.Println("\t/dev/video1")
			fmt.Println("\t/dev/media0")
			fmt.Println()
			fmt.Println("USB Webcam (usb-0000:00:14.0-2):")
			fmt.Println("\t/dev/video2")
			fmt.Println("\t/dev/video3")
			os.Exit(0)
		case "--list-formats-ext":
			fmt.Println("ioctl: VIDIOC_ENUM_FMT")
			fmt.Println("\tType: Video Capture")
			fmt.Println()
			fmt.Println("\t[0]: 'MJPG' (Motion-JPEG, compressed)")
			fmt.Println("\t\tSize: Discrete 640x480")
			fmt.Println("\t\t\tInterval: Discrete 0.033s (30.000 fps)")
			fmt.Println("\t\tSize: Discrete 1280x720")
			fmt.Println("\t\t\tInterval: Discrete 0.033s (30.000 fps)")
			fmt.Println("\t[1]: 'YUYV' (YUYV 4:2:2)")
			fmt.Println("\t\tSize: Discrete 320x240")
			os.Exit(0)
		}
	}
	os.Exit(0)
}

func TestListCameras(t *testing.T) {
	execCommand = fakeExecCommand
	defer func() { execCommand = exec.Command }()

	devices, err := ListCameras()
	if err != nil {
		t.Fatalf("ListCameras failed: %v", err)
	}

	want := []DeviceInfo{
		{Path: "/dev/video0", Name: "Integrated Camera: Integrated C"},
		{Path: "/dev/video2", Name: "USB Webcam"},
	}
	if len(devices) != len(want) {
		t.Fatalf("expected %d devices, got %v", len(want), devices)
	}
	for i := range want {
		if devices[i] != want[i] {
			t.Errorf("device %d = %+v, want %+v", i, devices[i], want[i])
		}
	}
}

func TestListCameras_GlobFallback(t *testing.T) {
	execCommand = failingExecCommand
	globDevices = func(string) ([]string, error) {
		return []string{"/dev/video2", "/dev/video0"}, nil
	}
	defer func() {
		execCommand = exec.Command
		globDevices = filepath.Glob
	}()

	devices, err := ListCameras()
	if err != nil {
		t.Fatalf("ListCameras failed: %v", err)
	}
	if len(devices) != 2 || devices[0].Path != "/dev/video0" {
		t.Errorf("expected sorted glob fallback, got %v", devices)
	}
}

func TestListFormats(t *testing.T) {
	execCommand = fakeExecCommand
	defer func() { execCommand = exec.Command }()

	formats, err := ListFormats("/dev/video0")
	if err != nil {
		t.Fatalf("ListFormats failed: %v", err)
	}

	want := []VideoFormat{
		{PixelFormat: "MJPG", Width: 640, Height: 480},
		{PixelFormat: "MJPG", Width: 1280, Height: 720},
		{PixelFormat: "YUYV", Width: 320, Height: 240},
	}
	if len(formats) != len(want) {
		t.Fatalf("expected %d formats, got %v", len(want), formats)
	}
	for i := range want {
		if formats[i] != want[i] {
			t.Errorf("format %d = %v, want %v", i, formats[i], want[i])
		}
	}
}

func TestListFormats_Error(t *testing.T) {
	execCommand = failingExecCommand
	defer func() { execCommand = exec.Command }()

	if _, err := ListFormats("/dev/video9"); err == nil {
		t.Error("expected error when v4l2-ctl fails")
	}
}

func TestBestFormat(t *testing.T) {
	tests := []struct {
		name    string
		formats []VideoFormat
		want    VideoFormat
		wantOK  bool
	}{
		{name: "empty"},
		{
			name:    "largest wins",
			formats: []VideoFormat{{"YUYV", 640, 480}, {"MJPG", 1280, 720}, {"MJPG", 320, 240}},
			want:    VideoFormat{"MJPG", 1280, 720},
			wantOK:  true,
		},
		{
			name:    "both sides must be larger",
			formats: []VideoFormat{{"YUYV", 640, 480}, {"MJPG", 1280, 480}, {"MJPG", 640, 720}},
			want:    VideoFormat{"YUYV", 640, 480},
			wantOK:  true,
		},
		{
			name:    "equal size keeps the first",
			formats: []VideoFormat{{"MJPG", 640, 480}, {"YUYV", 640, 480}},
			want:    VideoFormat{"MJPG", 640, 480},
			wantOK:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BestFormat(tt.formats)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("BestFormat() = %v, %v, want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSelectDevice(t *testing.T) {
	devices := []DeviceInfo{
		{Path: "/dev/video0", Name: "Integrated Camera"},
		{Path: "/dev/video2", Name: "USB Webcam"},
	}

	tests := []struct {
		name    string
		devices []DeviceInfo
		want    string
		path    string
		wantErr error
	}{
		{name: "first by default", devices: devices, path: "/dev/video0"},
		{name: "by path", devices: devices, want: "/dev/video2", path: "/dev/video2"},
		{name: "by name", devices: devices, want: "usb webcam", path: "/dev/video2"},
		{name: "unknown", devices: devices, want: "/dev/video7", wantErr: ErrCameraNotFound},
		{name: "no cameras", wantErr: ErrNoCamera},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectDevice(tt.devices, tt.want)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("SelectDevice() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectDevice() error = %v", err)
			}
			if got.Path != tt.path {
				t.Errorf("SelectDevice() = %s, want %s", got.Path, tt.path)
			}
		})
	}
}

func TestDeviceInfoString(t *testing.T) {
	if s := (DeviceInfo{Path: "/dev/video0"}).String(); s != "/dev/video0" {
		t.Errorf("String() = %q", s)
	}
	if s := (DeviceInfo{Path: "/dev/video0", Name: "Cam"}).String(); s != "Cam (/dev/video0)" {
		t.Errorf("String() = %q", s)
	}
}

func TestFrameSlot_LatestWins(t *testing.T) {
	s := newFrameSlot()

	if s.publish(&Frame{Seq: 1}) {
		t.Error("first publish should not drop")
	}
	if !s.publish(&Frame{Seq: 2}) {
		t.Error("second publish should replace the unread frame")
	}

	f, err := s.wait(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("wait() error = %v", err)
	}
	if f.Seq != 2 {
		t.Errorf("wait() returned frame %d, want 2", f.Seq)
	}
}

func TestFrameSlot_Timeout(t *testing.T) {
	s := newFrameSlot()

	if _, err := s.wait(context.Background(), 10*time.Millisecond); !errors.Is(err, ErrNoFrame) {
		t.Errorf("wait() error = %v, want ErrNoFrame", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.wait(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("wait() error = %v, want context.Canceled", err)
	}
}
