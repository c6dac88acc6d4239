package machinelearning

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// CLIPConfig names the text-encoding model the external ML service runs.
type CLIPConfig struct {
	ModelName string
	Dimension int
}

type Config struct {
	URL  string
	CLIP CLIPConfig
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL       ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL       ConfigErrorCode = "invalid_url"
	ConfigErrorInvalidDimension ConfigErrorCode = "invalid_dimension"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid machine-learning config"
	}
	switch e.Code {
	case ConfigErrorMissingURL:
		return "MACHINE_LEARNING_URL is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf(
			"invalid MACHINE_LEARNING_URL=%q; expected absolute URL like http://immich-ml:3003",
			e.Value,
		)
	case ConfigErrorInvalidDimension:
		return fmt.Sprintf("invalid CLIP_VECTOR_DIM=%q; expected positive integer", e.Value)
	default:
		return "invalid machine-learning config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func ResolveConfigFromEnv() (Config, error) {
	rawDim := strings.TrimSpace(os.Getenv("CLIP_VECTOR_DIM"))
	dim := 512
	if rawDim != "" {
		parsed, err := strconv.Atoi(rawDim)
		if err != nil || parsed <= 0 {
			return Config{}, &ConfigError{
				Code:  ConfigErrorInvalidDimension,
				Value: rawDim,
				Cause: err,
			}
		}
		dim = parsed
	}

	model := strings.TrimSpace(os.Getenv("CLIP_MODEL_NAME"))
	if model == "" {
		model = "ViT-B-32__openai"
	}

	cfg := Config{
		URL: strings.TrimSpace(os.Getenv("MACHINE_LEARNING_URL")),
		CLIP: CLIPConfig{
			ModelName: model,
			Dimension: dim,
		},
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if cfg.URL == "" {
		return &ConfigError{Code: ConfigErrorMissingURL}
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
		return &ConfigError{
			Code:  ConfigErrorInvalidURL,
			Value: cfg.URL,
			Cause: err,
		}
	}
	if cfg.CLIP.Dimension <= 0 {
		return &ConfigError{
			Code:  ConfigErrorInvalidDimension,
			Value: strconv.Itoa(cfg.CLIP.Dimension),
		}
	}
	return nil
}
