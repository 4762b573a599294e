// Package config describes the parameters of a memory timing engine and
// loads them from YAML or TOML files laid out like Ramulator2 configs.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Format selects the syntax of a configuration document.
type Format int

// A list of supported configuration formats.
const (
	YAML Format = iota
	TOML
)

// FormatOf guesses the format from a file name.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return 0, fmt.Errorf("config: unknown file extension of %q", path)
	}
}

// Engine names. The reference engine lives in this module; other engines
// register themselves with the bridge under their own name.
const (
	EngineReference = "Reference"
	EngineRamulator = "Ramulator2"
)

// Config is the full description of a frontend and a memory system.
type Config struct {
	// Engine selects the timing engine implementation.
	Engine string `yaml:"Engine" toml:"Engine"`

	Frontend     FrontendConfig     `yaml:"Frontend" toml:"Frontend"`
	MemorySystem MemorySystemConfig `yaml:"MemorySystem" toml:"MemorySystem"`

	// Path is the file the configuration was read from, if any. Engines
	// that parse the file on their own need it.
	Path string `yaml:"-" toml:"-"`
}

// FrontendConfig configures the request admission side.
type FrontendConfig struct {
	Impl       string `yaml:"impl" toml:"impl"`
	ClockRatio int    `yaml:"clock_ratio" toml:"clock_ratio"`
	QueueSize  int    `yaml:"queue_size" toml:"queue_size"`
}

// MemorySystemConfig configures the timing model.
type MemorySystemConfig struct {
	Impl       string           `yaml:"impl" toml:"impl"`
	ClockRatio int              `yaml:"clock_ratio" toml:"clock_ratio"`
	DRAM       DRAMConfig       `yaml:"DRAM" toml:"DRAM"`
	Controller ControllerConfig `yaml:"Controller" toml:"Controller"`
	AddrMapper ImplConfig       `yaml:"AddrMapper" toml:"AddrMapper"`
}

// DRAMConfig holds the organization and timing of the devices.
type DRAMConfig struct {
	Impl   string       `yaml:"impl" toml:"impl"`
	Org    OrgConfig    `yaml:"org" toml:"org"`
	Timing TimingConfig `yaml:"timing" toml:"timing"`
}

// OrgConfig is the DRAM organization. Zero fields take the preset value.
type OrgConfig struct {
	Preset    string `yaml:"preset" toml:"preset"`
	Channel   int    `yaml:"channel" toml:"channel"`
	Rank      int    `yaml:"rank" toml:"rank"`
	BankGroup int    `yaml:"bankgroup" toml:"bankgroup"`
	Bank      int    `yaml:"bank" toml:"bank"`
	Row       int    `yaml:"row" toml:"row"`
	Column    int    `yaml:"column" toml:"column"`
}

// TimingConfig holds the DRAM timing, in DRAM cycles except for TCK which is
// in nanoseconds. Zero fields take the preset value.
type TimingConfig struct {
	Preset string  `yaml:"preset" toml:"preset"`
	TCK    float64 `yaml:"tCK" toml:"tCK"`
	NCL    int     `yaml:"nCL" toml:"nCL"`
	NRCD   int     `yaml:"nRCD" toml:"nRCD"`
	NRP    int     `yaml:"nRP" toml:"nRP"`
	NBL    int     `yaml:"nBL" toml:"nBL"`
	NWR    int     `yaml:"nWR" toml:"nWR"`
}

// ControllerConfig configures the memory controller queue and scheduler.
type ControllerConfig struct {
	Impl      string     `yaml:"impl" toml:"impl"`
	QueueSize int        `yaml:"queue_size" toml:"queue_size"`
	Scheduler ImplConfig `yaml:"Scheduler" toml:"Scheduler"`
}

// ImplConfig only names an implementation.
type ImplConfig struct {
	Impl string `yaml:"impl" toml:"impl"`
}

// Load reads, parses, completes, and validates the configuration file at
// path.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg.Path = path

	return cfg, nil
}

// Parse decodes a configuration document, fills defaults and presets, and
// validates the result. Documents for the reference engine must not carry
// unknown keys; documents for other engines may, since those engines parse
// the file themselves.
func Parse(data []byte, format Format) (*Config, error) {
	cfg, err := decode(data, format, false)
	if err != nil {
		return nil, err
	}

	if cfg.Engine == "" || cfg.Engine == EngineReference {
		cfg, err = decode(data, format, true)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.Complete(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(data []byte, format Format, strict bool) (*Config, error) {
	cfg := &Config{}

	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(strict)
		err := dec.Decode(cfg)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	case TOML:
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		if err != nil {
			return nil, fmt.Errorf("config: parse toml: %w", err)
		}

		undecoded := md.Undecoded()
		if strict && len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown key %s", ErrInvalid, undecoded[0])
		}
	default:
		return nil, fmt.Errorf("config: unknown format %d", format)
	}

	return cfg, nil
}

// Complete fills defaults and applies the organization and timing presets.
// Fields set explicitly win over presets. Only the engine name is completed
// for engines other than the reference engine.
func (c *Config) Complete() error {
	setDefault(&c.Engine, EngineReference)
	if c.Engine != EngineReference {
		return nil
	}

	setDefault(&c.Frontend.Impl, "External")
	setDefaultInt(&c.Frontend.ClockRatio, 1)
	setDefaultInt(&c.Frontend.QueueSize, 32)

	ms := &c.MemorySystem
	setDefault(&ms.Impl, "GenericDRAM")
	setDefaultInt(&ms.ClockRatio, 1)
	setDefault(&ms.Controller.Impl, "Generic")
	setDefaultInt(&ms.Controller.QueueSize, 32)
	setDefault(&ms.Controller.Scheduler.Impl, SchedulerFRFCFS)
	setDefault(&ms.AddrMapper.Impl, MapperRoBaRaCoCh)

	if err := applyOrgPreset(&ms.DRAM.Org); err != nil {
		return err
	}

	if err := applyTimingPreset(&ms.DRAM.Timing); err != nil {
		return err
	}

	setDefault(&ms.DRAM.Impl, dramImplOf(ms.DRAM.Timing.Preset))

	return nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setDefaultInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}

func dramImplOf(timingPreset string) string {
	impl, _, found := strings.Cut(timingPreset, "_")
	if !found {
		return "DDR4"
	}

	return impl
}
