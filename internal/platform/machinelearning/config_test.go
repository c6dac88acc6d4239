package machinelearning

import (
	"errors"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name     string
		cfg      Config
		wantCode ConfigErrorCode
	}{
		{
			name: "valid",
			cfg: Config{
				URL:  "http://immich-ml:3003",
				CLIP: CLIPConfig{ModelName: "ViT-B-32__openai", Dimension: 512},
			},
		},
		{
			name:     "missing_url",
			cfg:      Config{CLIP: CLIPConfig{Dimension: 512}},
			wantCode: ConfigErrorMissingURL,
		},
		{
			name: "relative_url",
			cfg: Config{
				URL:  "immich-ml:3003",
				CLIP: CLIPConfig{Dimension: 512},
			},
			wantCode: ConfigErrorInvalidURL,
		},
		{
			name: "zero_dimension",
			cfg: Config{
				URL: "http://immich-ml:3003",
			},
			wantCode: ConfigErrorInvalidDimension,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.cfg)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("ValidateConfig: %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Code != tc.wantCode {
				t.Fatalf("code=%s, want %s", cfgErr.Code, tc.wantCode)
			}
		})
	}
}
