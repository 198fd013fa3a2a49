package kinect2

import (
	"strings"

	"github.com/pkg/errors"
)

// Pipeline selects where the device's depth packets are decoded.
type Pipeline int

// Known packet pipelines.
const (
	PipelineCPU Pipeline = iota
	PipelineOpenGL
	PipelineOpenCL
	PipelineCUDA
)

func (p Pipeline) String() string {
	switch p {
	case PipelineCPU:
		return "cpu"
	case PipelineOpenGL:
		return "opengl"
	case PipelineOpenCL:
		return "opencl"
	case PipelineCUDA:
		return "cuda"
	default:
		return "unknown"
	}
}

// PipelineFromString parses a pipeline name. The empty string selects the CPU pipeline.
func PipelineFromString(s string) (Pipeline, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cpu":
		return PipelineCPU, nil
	case "opengl", "gl":
		return PipelineOpenGL, nil
	case "opencl", "cl":
		return PipelineOpenCL, nil
	case "cuda":
		return PipelineCUDA, nil
	default:
		return PipelineCPU, errors.Wrapf(ErrUnsupportedPipeline, "%q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Pipeline) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pipeline) UnmarshalText(text []byte) error {
	parsed, err := PipelineFromString(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
