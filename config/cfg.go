package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	ImagesConfig struct {
		Placeholder bool  `yaml:"placeholder"`
		Seed        int64 `yaml:"seed"`
		MaxWidth    int   `yaml:"max_width" validate:"min=100,max=4000"`
		JPEGQuality int   `yaml:"jpeg_quality_level" validate:"min=40,max=100"`
	}

	PDFConfig struct {
		PageSize    PageSize `yaml:"page_size"`
		Margin      float64  `yaml:"margin" validate:"gte=5,lte=50"`
		FontSize    float64  `yaml:"font_size" validate:"gte=6,lte=24"`
		PageNumbers bool     `yaml:"page_numbers"`
		FetchImages bool     `yaml:"fetch_images"`
	}

	PreviewConfig struct {
		Thumbnails     bool    `yaml:"thumbnails"`
		ThumbnailScale float64 `yaml:"thumbnail_scale" validate:"gt=0,lte=1"`
	}

	ExtractorConfig struct {
		ReportMalformed bool `yaml:"report_malformed"`
	}

	DocumentConfig struct {
		OutputNameTemplate    string          `yaml:"output_name_template"`
		FileNameTransliterate bool            `yaml:"file_name_transliterate"`
		StylesheetPath        string          `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		Images                ImagesConfig    `yaml:"images"`
		PDF                   PDFConfig       `yaml:"pdf"`
		Preview               PreviewConfig   `yaml:"preview"`
		Extractor             ExtractorConfig `yaml:"extractor"`
	}

	FetchConfig struct {
		Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
		Retries   int           `yaml:"retries" validate:"gte=0,lte=10"`
		RetryWait time.Duration `yaml:"retry_wait" validate:"gte=0"`
		UserAgent string        `yaml:"user_agent" validate:"required"`
		Token     SecretString  `yaml:"token,omitempty"`
	}

	ServerConfig struct {
		Listen          string        `yaml:"listen" validate:"required,hostname_port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
		Metrics         bool          `yaml:"metrics"`
	}

	EditorConfig struct {
		Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Fetch     FetchConfig    `yaml:"fetch"`
		Server    ServerConfig   `yaml:"server"`
		Editor    EditorConfig   `yaml:"editor"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
