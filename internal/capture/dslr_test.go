package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/openbooth/booth-core/internal/infrastructure/config"
)

func newTestDSLR(t *testing.T) *dslr {
	t.Helper()
	deps := StrategyDeps{
		Booth: config.BoothConfig{
			OutputDir:    t.TempDir(),
			ThumbnailDir: t.TempDir(),
		},
	}
	deps.applyDefaults()
	return newDSLR(deps)
}

func TestParseAutoDetect(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []detectedCamera
	}{
		{
			name: "single camera",
			output: "Model                          Port\n" +
				"----------------------------------------------------------\n" +
				"Canon EOS 2000D                usb:001,004\n",
			want: []detectedCamera{
				{Model: "Canon EOS 2000D", Port: "usb:001,004"},
			},
		},
		{
			name: "multiple cameras",
			output: "Model                          Port\n" +
				"----------------------------------------------------------\n" +
				"Canon EOS 2000D                usb:001,004\n" +
				"Nikon D3500                    usb:001,007\n",
			want: []detectedCamera{
				{Model: "Canon EOS 2000D", Port: "usb:001,004"},
				{Model: "Nikon D3500", Port: "usb:001,007"},
			},
		},
		{
			name: "no cameras",
			output: "Model                          Port\n" +
				"----------------------------------------------------------\n",
			want: nil,
		},
		{
			name:   "empty output",
			output: "",
			want:   nil,
		},
		{
			name: "blank lines ignored",
			output: "Model                          Port\n" +
				"----------------------------------------------------------\n" +
				"\n" +
				"Sony Alpha a6000               usb:002,003\n" +
				"\n",
			want: []detectedCamera{
				{Model: "Sony Alpha a6000", Port: "usb:002,003"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAutoDetect(tt.output)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d cameras, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("camera %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestConfigPairs(t *testing.T) {
	pairs := configPairs(Settings{
		ISO:          "400",
		ShutterSpeed: "1/125",
		WhiteBalance: "Daylight",
	})

	want := []string{"iso=400", "shutterspeed=1/125", "whitebalance=Daylight"}
	if len(pairs) != len(want) {
		t.Fatalf("pairs = %v, want %v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pair %d = %q, want %q", i, pairs[i], want[i])
		}
	}
}

func TestConfigPairs_EmptySettings(t *testing.T) {
	if pairs := configPairs(Settings{}); len(pairs) != 0 {
		t.Errorf("expected no pairs for zero settings, got %v", pairs)
	}
}

func TestDSLR_VideoUnsupported(t *testing.T) {
	d := newTestDSLR(t)

	if err := d.StartVideo(context.Background()); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("StartVideo = %v, want ErrUnsupportedOperation", err)
	}
	if _, err := d.StopVideo(context.Background()); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("StopVideo = %v, want ErrUnsupportedOperation", err)
	}
}

func TestDSLR_Capabilities(t *testing.T) {
	d := newTestDSLR(t)
	caps := d.Capabilities()

	if caps.CanRecordVideo {
		t.Error("DSLR strategy must not advertise video recording")
	}
	if !caps.CanCaptureStill || !caps.CanLiveView || !caps.CanAdjustSettings {
		t.Errorf("unexpected capabilities: %+v", caps)
	}
}

func TestDSLR_TakePictureWithoutInitialize(t *testing.T) {
	d := newTestDSLR(t)

	_, err := d.TakePicture(context.Background(), nil)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("TakePicture uninitialised = %v, want ErrDeviceUnavailable", err)
	}
}

func TestDSLR_InitializeWithoutBinary(t *testing.T) {
	d := newTestDSLR(t)
	d.binary = "/nonexistent/gphoto2"

	err := d.Initialize(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Initialize = %v, want ErrDeviceUnavailable", err)
	}
}
