package annotation

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const DefaultProblemTemplate = "Please provide the bounding box coordinate of the region this sentence describes: {caption}."

type Config struct {
	Meta struct {
		Description string `yaml:"description" toml:"description"`
	} `yaml:"meta" toml:"meta"`
	Data    ConfigData    `yaml:"data" toml:"data"`
	Dataset ConfigDataset `yaml:"dataset" toml:"dataset"`
	Server  ConfigServer  `yaml:"server" toml:"server"`
	Image   ConfigImage   `yaml:"image" toml:"image"`
	Logging ConfigLogging `yaml:"logging" toml:"logging"`
}

type ConfigData struct {
	// Candidates is the catalog of images and candidate boxes
	Candidates string `yaml:"candidates" toml:"candidates"`
	// Output is the annotation store, rewritten on every save
	Output string `yaml:"output" toml:"output"`
	// ImageBaseDir is prepended to relative image paths of the catalog
	ImageBaseDir string `yaml:"image_base_dir" toml:"image_base_dir"`
	// ImagePrefix is the folder annotations use in their image reference
	ImagePrefix string `yaml:"image_prefix" toml:"image_prefix"`
}

type ConfigDataset struct {
	Name            string `yaml:"name" toml:"name"`
	TextType        string `yaml:"text_type" toml:"text_type"`
	ProblemTemplate string `yaml:"problem_template" toml:"problem_template"`
}

type ConfigServer struct {
	Addr    string `yaml:"addr" toml:"addr"`
	Release bool   `yaml:"release" toml:"release"`
}

type ConfigImage struct {
	JPEGQuality int `yaml:"jpeg_quality" toml:"jpeg_quality"`
}

type ConfigLogging struct {
	Level string `yaml:"level" toml:"level"` // debug, info, warn, error
}

func DefaultConfig() *Config {
	ret := &Config{
		Data: ConfigData{
			Candidates:   "data/test_images_multiple_instances_filtered.json",
			Output:       "results/openimages_test.json",
			ImageBaseDir: ".",
			ImagePrefix:  "val2017",
		},
		Dataset: ConfigDataset{
			Name:            "refcocos_test",
			TextType:        "caption",
			ProblemTemplate: DefaultProblemTemplate,
		},
		Server: ConfigServer{
			Addr: ":5555",
		},
		Image: ConfigImage{
			JPEGQuality: 90,
		},
		Logging: ConfigLogging{
			Level: "info",
		},
	}
	ret.Meta.Description = "RefCOCOS referring expression annotation"
	return ret
}

// LoadConfig reads a YAML file, or TOML when the name ends in .toml, on top
// of the defaults and applies environment overrides
func LoadConfig(filename string) (*Config, error) {
	ret := DefaultConfig()
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(filename), ".toml") {
		_, err = toml.Decode(string(data), ret)
	} else {
		err = yaml.Unmarshal(data, ret)
	}
	if err != nil {
		return nil, fmt.Errorf("while parsing config '%s': %w", filename, err)
	}
	ret.ApplyEnv()
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// ApplyEnv applies environment variable overrides
func (c *Config) ApplyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		host, _, err := net.SplitHostPort(c.Server.Addr)
		if err != nil {
			host = ""
		}
		c.Server.Addr = net.JoinHostPort(host, port)
	}
	if level := os.Getenv("REFCOCOS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func (c *Config) Validate() error {
	if c.Data.Candidates == "" {
		return fmt.Errorf("data.candidates must not be empty")
	}
	if c.Data.Output == "" {
		return fmt.Errorf("data.output must not be empty")
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("image.jpeg_quality must be between 1 and 100, got %d", c.Image.JPEGQuality)
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if !strings.Contains(c.Dataset.ProblemTemplate, "{caption}") {
		return fmt.Errorf("dataset.problem_template must contain {caption}")
	}
	return nil
}

// ApplyLogging sets the process wide log level
func (c *Config) ApplyLogging() error {
	level, err := log.ParseLevel(c.Logging.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	return nil
}

// Problem renders the task prompt for a caption
func (c *Config) Problem(caption string) string {
	return strings.ReplaceAll(c.Dataset.ProblemTemplate, "{caption}", caption)
}

// ImagePath resolves a catalog image path against the image base dir
func (c *Config) ImagePath(p string) string {
	if filepath.IsAbs(p) || c.Data.ImageBaseDir == "" {
		return p
	}
	return filepath.Join(c.Data.ImageBaseDir, p)
}

// SampleConfig is written by the init command
const SampleConfig = `meta:
  description: |
    Draw a box around the region the caption describes, or mark the
    caption as an empty case when nothing in the image matches.
data:
  candidates: data/test_images_multiple_instances_filtered.json
  output: results/openimages_test.json
  image_base_dir: .
  image_prefix: val2017
dataset:
  name: refcocos_test
  text_type: caption
server:
  addr: ":5555"
  release: false
image:
  jpeg_quality: 90
logging:
  level: info
`
