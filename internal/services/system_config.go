package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/platform/machinelearning"
	"github.com/diegobr89/immich/internal/types"
	"github.com/diegobr89/immich/internal/utils"
)

type Feature string

const (
	FeatureSmartSearch       Feature = "smart_search"
	FeatureFacialRecognition Feature = "facial_recognition"
)

// SystemConfigProvider is injected into the evaluation engine so tests run
// against fixed snapshots instead of ambient process state.
type SystemConfigProvider interface {
	// RequireFeature fails fast with ErrFeatureDisabled when the instance
	// configuration turns the capability off.
	RequireFeature(f Feature) error
	CLIP() machinelearning.CLIPConfig
	EvalConcurrency() int
}

// systemConfigFile mirrors the optional YAML config. Env vars override it.
type systemConfigFile struct {
	MachineLearning struct {
		Enabled *bool `yaml:"enabled"`
		CLIP    struct {
			Enabled   *bool  `yaml:"enabled"`
			ModelName string `yaml:"modelName"`
		} `yaml:"clip"`
		FacialRecognition struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"facialRecognition"`
	} `yaml:"machineLearning"`
	SmartAlbums struct {
		EvalConcurrency int `yaml:"evalConcurrency"`
	} `yaml:"smartAlbums"`
}

type systemConfigService struct {
	log             *logger.Logger
	smartSearch     bool
	facialRecog     bool
	clip            machinelearning.CLIPConfig
	evalConcurrency int
}

func NewSystemConfigService(log *logger.Logger, mlCfg machinelearning.Config) (SystemConfigProvider, error) {
	serviceLog := log.With("service", "SystemConfigService")

	s := &systemConfigService{
		log:             serviceLog,
		smartSearch:     true,
		facialRecog:     true,
		clip:            mlCfg.CLIP,
		evalConcurrency: 4,
	}

	if path := strings.TrimSpace(os.Getenv("SYSTEM_CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read system config %s: %w", path, err)
		}
		var file systemConfigFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse system config %s: %w", path, err)
		}
		s.applyFile(file)
		serviceLog.Info("Loaded system config file", "path", path)
	}

	// Env wins over the file so a single instance can be toggled without
	// editing shared config.
	s.smartSearch = utils.GetEnvAsBool("SMART_SEARCH_ENABLED", s.smartSearch, log)
	s.facialRecog = utils.GetEnvAsBool("FACIAL_RECOGNITION_ENABLED", s.facialRecog, log)
	concurrency := utils.GetEnvAsInt("SMART_ALBUM_EVAL_CONCURRENCY", s.evalConcurrency, log)
	if concurrency > 0 {
		s.evalConcurrency = concurrency
	}

	serviceLog.Info("System config resolved",
		"smart_search", s.smartSearch,
		"facial_recognition", s.facialRecog,
		"clip_model", s.clip.ModelName,
		"eval_concurrency", s.evalConcurrency,
	)
	return s, nil
}

func (s *systemConfigService) applyFile(file systemConfigFile) {
	if file.MachineLearning.Enabled != nil && !*file.MachineLearning.Enabled {
		s.smartSearch = false
		s.facialRecog = false
	}
	if file.MachineLearning.CLIP.Enabled != nil {
		s.smartSearch = *file.MachineLearning.CLIP.Enabled
	}
	if file.MachineLearning.FacialRecognition.Enabled != nil {
		s.facialRecog = *file.MachineLearning.FacialRecognition.Enabled
	}
	if name := strings.TrimSpace(file.MachineLearning.CLIP.ModelName); name != "" {
		s.clip.ModelName = name
	}
	if file.SmartAlbums.EvalConcurrency > 0 {
		s.evalConcurrency = file.SmartAlbums.EvalConcurrency
	}
}

func (s *systemConfigService) RequireFeature(f Feature) error {
	switch f {
	case FeatureSmartSearch:
		if !s.smartSearch {
			return fmt.Errorf("%w: smart search is disabled on this instance", types.ErrFeatureDisabled)
		}
	case FeatureFacialRecognition:
		if !s.facialRecog {
			return fmt.Errorf("%w: facial recognition is disabled on this instance", types.ErrFeatureDisabled)
		}
	default:
		return fmt.Errorf("%w: unknown feature %q", types.ErrFeatureDisabled, f)
	}
	return nil
}

func (s *systemConfigService) CLIP() machinelearning.CLIPConfig { return s.clip }

func (s *systemConfigService) EvalConcurrency() int { return s.evalConcurrency }
