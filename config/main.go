package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Layout LayoutConfig `json:"layout" yaml:"layout"`
	Print  PrintConfig  `json:"print" yaml:"print"`
	// DBPath is the path to the repository database. ":memory:" is allowed.
	DBPath string `json:"db-path" yaml:"db-path"`
	// AllowedOrigins are the browser origins allowed to use the HTTP server.
	AllowedOrigins []string `json:"allowed-origins" yaml:"allowed-origins"`
	// ExportName is a text/template (with sprig functions) naming exported files.
	// Empty uses the object name.
	ExportName string `json:"export-name" yaml:"export-name"`
}

// LayoutConfig holds the spacing constants of the time-distance diagram.
// It is passed by value into every load so that loads never read ambient state.
type LayoutConfig struct {
	HorizontalOffset float64 `json:"horizontal-offset" yaml:"horizontal-offset"`
	VerticalOffset   float64 `json:"vertical-offset" yaml:"vertical-offset"`
	// HourOffset is the height of one hour.
	HourOffset     float64 `json:"hour-offset" yaml:"hour-offset"`
	StationOffset  float64 `json:"station-offset" yaml:"station-offset"`
	PlatformOffset float64 `json:"platform-offset" yaml:"platform-offset"`
	JobLineWidth   float64 `json:"job-line-width" yaml:"job-line-width"`
}

// PrintConfig holds the page setup used for paged output.
type PrintConfig struct {
	ScaleFactor        float64 `json:"scale-factor" yaml:"scale-factor"`
	MarginWidth        float64 `json:"margin-width" yaml:"margin-width"`
	MarginPenWidth     float64 `json:"margin-pen-width" yaml:"margin-pen-width"`
	DrawPageMargins    bool    `json:"draw-page-margins" yaml:"draw-page-margins"`
	PageNumbers        bool    `json:"page-numbers" yaml:"page-numbers"`
	PageNumberFontSize float64 `json:"page-number-font-size" yaml:"page-number-font-size"`
	// PageWidth and PageHeight are in device pixels at Resolution dpi.
	PageWidth  float64 `json:"page-width" yaml:"page-width"`
	PageHeight float64 `json:"page-height" yaml:"page-height"`
	Resolution float64 `json:"resolution" yaml:"resolution"`
}

func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		HorizontalOffset: 50,
		VerticalOffset:   10,
		HourOffset:       150,
		StationOffset:    150,
		PlatformOffset:   20,
		JobLineWidth:     2,
	}
}

// DefaultPrintConfig is an A4 portrait page at 72 dpi.
func DefaultPrintConfig() PrintConfig {
	return PrintConfig{
		ScaleFactor:        1,
		MarginWidth:        20,
		MarginPenWidth:     7,
		DrawPageMargins:    true,
		PageNumbers:        true,
		PageNumberFontSize: 20,
		PageWidth:          595,
		PageHeight:         842,
		Resolution:         72,
	}
}

func Default() Config {
	return Config{
		Layout: DefaultLayoutConfig(),
		Print:  DefaultPrintConfig(),
		DBPath: "rosen.db",
	}
}

func (c LayoutConfig) Validate() error {
	if c.HourOffset <= 0 {
		return errors.New("hour-offset must be positive")
	}
	if c.StationOffset <= 0 {
		return errors.New("station-offset must be positive")
	}
	if c.PlatformOffset <= 0 {
		return errors.New("platform-offset must be positive")
	}
	if c.HorizontalOffset < 0 || c.VerticalOffset < 0 {
		return errors.New("offsets must not be negative")
	}
	return nil
}

func (c PrintConfig) Validate() error {
	if c.ScaleFactor <= 0 {
		return errors.New("scale-factor must be positive")
	}
	if c.MarginWidth < 0 {
		return errors.New("margin-width must not be negative")
	}
	if c.PageWidth <= 0 || c.PageHeight <= 0 {
		return errors.New("page size must be positive")
	}
	if c.Resolution <= 0 {
		return errors.New("resolution must be positive")
	}
	return nil
}

// Load reads a JSON or YAML (by extension) config file on top of Default.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &c)
	case ".json":
		err = json.Unmarshal(data, &c)
	default:
		return c, fmt.Errorf("config %s: unknown extension", path)
	}
	if err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Layout.Validate(); err != nil {
		return c, fmt.Errorf("config %s: layout: %w", path, err)
	}
	if err := c.Print.Validate(); err != nil {
		return c, fmt.Errorf("config %s: print: %w", path, err)
	}
	return c, nil
}
