package ffprobe

import "testing"

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "aac", "codec_type": "audio", "duration": "60.100000"},
    {"index": 1, "codec_name": "h264", "codec_type": "video", "duration": "60.900000", "width": 1920, "height": 1080}
  ],
  "format": {"filename": "clip.mp4", "duration": "60.900000", "size": "10400000", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := result.DurationMillis(); got != 60_900 {
		t.Fatalf("DurationMillis = %d", got)
	}
	stream, ok := result.VideoStream()
	if !ok || stream.CodecName != "h264" || stream.Width != 1920 {
		t.Fatalf("VideoStream = %#v, %v", stream, ok)
	}
	if got := result.MIMEType(); got != "video/mp4" {
		t.Fatalf("MIMEType = %q", got)
	}
	if got := result.CodecInfo(); got != "video/mp4;codecs=h264" {
		t.Fatalf("CodecInfo = %q", got)
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "12.5"}, {CodecType: "audio", Duration: "bad"}},
		Format:  Format{Duration: "N/A"},
	}
	if got := result.DurationMillis(); got != 12_500 {
		t.Fatalf("DurationMillis = %d", got)
	}
	if got := (Result{Format: Format{Duration: "-3"}}).DurationMillis(); got != 0 {
		t.Fatalf("negative duration should yield 0, got %d", got)
	}
}

func TestMIMETypeVariants(t *testing.T) {
	cases := map[string]string{
		"matroska,webm": "video/x-matroska",
		"avi":           "video/x-msvideo",
		"mov,mp4,m4a":   "video/mp4",
		"mpegts":        "video/mpegts",
		"":              "",
	}
	for format, want := range cases {
		got := Result{Format: Format{FormatName: format}}.MIMEType()
		if got != want {
			t.Fatalf("MIMEType(%q) = %q, want %q", format, got, want)
		}
	}
}

func TestCodecInfoWithoutVideoStream(t *testing.T) {
	result := Result{Format: Format{FormatName: "avi"}}
	if got := result.CodecInfo(); got != "video/x-msvideo" {
		t.Fatalf("CodecInfo = %q", got)
	}
}
