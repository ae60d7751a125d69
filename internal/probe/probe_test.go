package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `{
  "format": {
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "10.500000",
    "size": "1048576"
  },
  "streams": [
    {
      "codec_type": "audio",
      "codec_name": "aac"
    },
    {
      "codec_type": "video",
      "codec_name": "h264",
      "width": 1920,
      "height": 1080,
      "nb_frames": "315",
      "r_frame_rate": "30/1",
      "avg_frame_rate": "30/1"
    }
  ]
}`

func TestParseOutput(t *testing.T) {
	meta, err := parseOutput("/videos/clip.mp4", []byte(sampleOutput))
	require.NoError(t, err)

	assert.Equal(t, "/videos/clip.mp4", meta.Path)
	assert.Equal(t, "mov,mp4,m4a,3gp,3g2,mj2", meta.Container)
	assert.Equal(t, "h264", meta.Codec)
	assert.Equal(t, 1920, meta.Width)
	assert.Equal(t, 1080, meta.Height)
	assert.InDelta(t, 30.0, meta.FPS, 1e-9)
	assert.True(t, meta.FPSValid)
	assert.Equal(t, int64(315), meta.FrameCount)
	assert.InDelta(t, 10.5, meta.Duration, 1e-9)
	assert.Equal(t, int64(1048576), meta.SizeBytes)
}

func TestParseOutputInvalidFPSDoesNotFail(t *testing.T) {
	raw := `{
	  "format": {"format_name": "avi", "duration": "4.0", "size": "1000"},
	  "streams": [{
	    "codec_type": "video", "codec_name": "mpeg4",
	    "width": 640, "height": 480,
	    "nb_frames": "120",
	    "r_frame_rate": "0/0", "avg_frame_rate": "0/0"
	  }]
	}`

	meta, err := parseOutput("/videos/broken_fps.avi", []byte(raw))
	require.NoError(t, err, "an invalid frame rate is a state, not a probe failure")
	assert.False(t, meta.FPSValid)
	assert.Zero(t, meta.FPS)
	assert.Equal(t, int64(120), meta.FrameCount)
}

func TestParseOutputEstimatesFrameCount(t *testing.T) {
	raw := `{
	  "format": {"format_name": "matroska,webm", "duration": "10.0", "size": "1000"},
	  "streams": [{
	    "codec_type": "video", "codec_name": "vp9",
	    "width": 1280, "height": 720,
	    "r_frame_rate": "25/1", "avg_frame_rate": "25/1"
	  }]
	}`

	meta, err := parseOutput("/videos/clip.mkv", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(250), meta.FrameCount)
}

func TestParseOutputNoEstimateWithInvalidFPS(t *testing.T) {
	raw := `{
	  "format": {"format_name": "matroska,webm", "duration": "10.0", "size": "1000"},
	  "streams": [{
	    "codec_type": "video", "codec_name": "vp9",
	    "width": 1280, "height": 720,
	    "r_frame_rate": "0/0", "avg_frame_rate": "0/0"
	  }]
	}`

	meta, err := parseOutput("/videos/clip.mkv", []byte(raw))
	require.NoError(t, err)
	assert.Zero(t, meta.FrameCount, "never estimate frames from an invalid rate")
}

func TestParseOutputZeroFrames(t *testing.T) {
	raw := `{
	  "format": {"format_name": "mp4", "size": "100"},
	  "streams": [{
	    "codec_type": "video", "codec_name": "h264",
	    "width": 640, "height": 480,
	    "r_frame_rate": "30/1", "avg_frame_rate": "30/1"
	  }]
	}`

	_, err := parseOutput("/videos/empty.mp4", []byte(raw))
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrZeroFrames, perr.Kind)
}

func TestParseOutputNoVideoStream(t *testing.T) {
	raw := `{
	  "format": {"format_name": "mp3", "duration": "180.0", "size": "100"},
	  "streams": [{"codec_type": "audio", "codec_name": "mp3"}]
	}`

	_, err := parseOutput("/videos/song.mp3", []byte(raw))
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrUnreadable, perr.Kind)
}

func TestParseOutputMalformedJSON(t *testing.T) {
	_, err := parseOutput("/videos/garbage.mp4", []byte("not json"))
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrUnreadable, perr.Kind)
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		name  string
		avg   string
		raw   string
		fps   float64
		valid bool
	}{
		{"integer rate", "30/1", "30/1", 30.0, true},
		{"ntsc rational", "30000/1001", "30000/1001", 29.97002997002997, true},
		{"plain number", "25", "", 25.0, true},
		{"zero over zero", "0/0", "0/0", 0, false},
		{"zero denominator", "30/0", "", 0, false},
		{"zero rate", "0/1", "0/1", 0, false},
		{"negative rate", "-25/1", "", 0, false},
		{"empty", "", "", 0, false},
		{"garbage", "abc", "xyz", 0, false},
		{"avg invalid falls back to raw", "0/0", "24/1", 24.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fps, valid := parseFrameRate(tt.avg, tt.raw)
			assert.Equal(t, tt.valid, valid)
			assert.InDelta(t, tt.fps, fps, 1e-9)
		})
	}
}
