package kinect2

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"
)

func TestPipelineFromString(t *testing.T) {
	for s, want := range map[string]Pipeline{
		"":       PipelineCPU,
		"CPU":    PipelineCPU,
		"opengl": PipelineOpenGL,
		"gl":     PipelineOpenGL,
		"OpenCL": PipelineOpenCL,
		"cuda":   PipelineCUDA,
	} {
		got, err := PipelineFromString(s)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, want)
	}
	_, err := PipelineFromString("vulkan")
	test.That(t, err, test.ShouldWrap, ErrUnsupportedPipeline)

	text, err := PipelineOpenCL.MarshalText()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(text), test.ShouldEqual, "opencl")
	var p Pipeline
	test.That(t, p.UnmarshalText(text), test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, PipelineOpenCL)
	test.That(t, Pipeline(42).String(), test.ShouldEqual, "unknown")
}

func TestConfigValidate(t *testing.T) {
	conf := Config{}
	test.That(t, conf.Validate("path"), test.ShouldBeNil)
	test.That(t, conf.FrameTimeout, test.ShouldEqual, DefaultFrameTimeout)

	conf = Config{FrameTimeout: -time.Second}
	err := conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "frame_timeout")

	conf = Config{Serialize: true}
	err = conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "output_dir")

	conf = Config{Pipeline: Pipeline(9)}
	test.That(t, conf.Validate("path"), test.ShouldNotBeNil)
}

func TestNewConfigFromAttributes(t *testing.T) {
	conf, err := NewConfigFromAttributes(map[string]interface{}{
		"driver":        "fake",
		"serial":        "1234",
		"pipeline":      "opengl",
		"mirror":        true,
		"remove_points": true,
		"full_hd":       true,
		"serialize":     true,
		"output_dir":    "/tmp/out",
		"frame_timeout": "250ms",
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf, test.ShouldResemble, &Config{
		Driver:       "fake",
		Serial:       "1234",
		Pipeline:     PipelineOpenGL,
		Mirror:       true,
		RemovePoints: true,
		FullHD:       true,
		Serialize:    true,
		OutputDir:    "/tmp/out",
		FrameTimeout: 250 * time.Millisecond,
	})

	_, err = NewConfigFromAttributes(map[string]interface{}{"pipeline": "vulkan"})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewConfigFromAttributes(map[string]interface{}{"mirrored": true})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k2g.json")
	test.That(t, os.WriteFile(path, []byte(`{"serial": "abc", "pipeline": "cuda", "frame_timeout": "2s"}`), 0o600),
		test.ShouldBeNil)
	conf, err := ReadConfigFile(path)
	test.That(t, err, test.ShouldBeNil)
	want := &Config{Serial: "abc", Pipeline: PipelineCUDA, FrameTimeout: 2 * time.Second}
	test.That(t, cmp.Diff(want, conf), test.ShouldBeEmpty)

	commented := `{
	// device selection
	"serial": "abc",
	"pipeline": "gl", /* block comment */
	"frame_timeout": "500ms",
}`
	test.That(t, os.WriteFile(path, []byte(commented), 0o600), test.ShouldBeNil)
	conf, err = ReadConfigFile(path)
	test.That(t, err, test.ShouldBeNil)
	want = &Config{Serial: "abc", Pipeline: PipelineOpenGL, FrameTimeout: 500 * time.Millisecond}
	test.That(t, cmp.Diff(want, conf), test.ShouldBeEmpty)

	test.That(t, os.WriteFile(path, []byte(`{"serial": `), 0o600), test.ShouldBeNil)
	_, err = ReadConfigFile(path)
	test.That(t, err, test.ShouldNotBeNil)
}
