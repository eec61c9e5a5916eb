package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"rdmark/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	ReaderConfig struct {
		DataDir               string                `yaml:"data_dir" sanitize:"path_clean" validate:"required"`
		PathStyle             common.PathStyle      `yaml:"path_style" validate:"gte=0"`
		ResourceScheme        common.ResourceScheme `yaml:"resource_scheme" validate:"gte=0"`
		ImageSuffixes         []string              `yaml:"image_suffixes" validate:"min=1,dive,required,startswith=."`
		DropTags              []string              `yaml:"drop_tags" validate:"dive,required"`
		MergeTags             []string              `yaml:"merge_tags" validate:"dive,required"`
		StylesheetPath        string                `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		OutputNameTemplate    string                `yaml:"output_name_template"`
		FileNameTransliterate bool                  `yaml:"file_name_transliterate"`
	}

	StorageConfig struct {
		Database string `yaml:"database" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Reader    ReaderConfig   `yaml:"reader"`
		Storage   StorageConfig  `yaml:"storage"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

// ResourcesDir is where chapter resources are extracted, one subdirectory per book.
func (c *ReaderConfig) ResourcesDir() string {
	return filepath.Join(c.DataDir, "resources")
}

// BookResourcesDir is the resource root of a particular book.
func (c *ReaderConfig) BookResourcesDir(bookID string) string {
	return filepath.Join(c.ResourcesDir(), bookID)
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("configuration sanitizing failed: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
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
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}

// BooksDir keeps library copies of imported books.
func (c *ReaderConfig) BooksDir() string {
	return filepath.Join(c.DataDir, "book")
}

// CoversDir keeps extracted cover images.
func (c *ReaderConfig) CoversDir() string {
	return filepath.Join(c.DataDir, "cover")
}
