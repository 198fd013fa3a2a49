package kinect2

import (
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	goutils "go.viam.com/utils"
)

// DefaultFrameTimeout is how long a session waits for one frame set before retrying.
const DefaultFrameTimeout = 10 * time.Second

// Config describes how a session opens and reads its device.
type Config struct {
	Driver       string        `json:"driver,omitempty"`
	Serial       string        `json:"serial,omitempty"`
	Pipeline     Pipeline      `json:"pipeline,omitempty"`
	Mirror       bool          `json:"mirror,omitempty"`
	RemovePoints bool          `json:"remove_points,omitempty"`
	FullHD       bool          `json:"full_hd,omitempty"`
	Serialize    bool          `json:"serialize,omitempty"`
	OutputDir    string        `json:"output_dir,omitempty"`
	FrameTimeout time.Duration `json:"frame_timeout,omitempty"`
}

// Validate checks the config and fills in defaults.
func (conf *Config) Validate(path string) error {
	if conf.Pipeline < PipelineCPU || conf.Pipeline > PipelineCUDA {
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown pipeline %d", int(conf.Pipeline)))
	}
	if conf.FrameTimeout < 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("frame_timeout cannot be negative, got %s", conf.FrameTimeout))
	}
	if conf.FrameTimeout == 0 {
		conf.FrameTimeout = DefaultFrameTimeout
	}
	if conf.Serialize && conf.OutputDir == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "output_dir")
	}
	return nil
}

// NewConfigFromAttributes decodes a loosely typed attribute map, such as the contents of a JSON
// config file. Durations may be given as strings ("250ms") and pipelines by name.
func NewConfigFromAttributes(attributes map[string]interface{}) (*Config, error) {
	conf := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      conf,
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "error decoding kinect2 config")
	}
	return conf, nil
}

// ReadConfigFile reads a JSON5 config file, which allows comments and trailing commas.
func ReadConfigFile(path string) (*Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}
	var attributes map[string]interface{}
	if err := json5.Unmarshal(data, &attributes); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}
	return NewConfigFromAttributes(attributes)
}
