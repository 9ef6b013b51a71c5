// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config defines the statistical configuration of a benchmark run.
//
// Configuration is validated with go-playground/validator tags. Values
// that make a run impossible are errors; values that merely weaken the
// statistics (few resamples, low confidence) are returned as warnings.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidConfig indicates a configuration that cannot be run.
	ErrInvalidConfig = errors.New("invalid benchmark configuration")

	// ErrUnknownSamplingMode indicates a sampling mode name or code that
	// is not auto, linear or flat.
	ErrUnknownSamplingMode = errors.New("unknown sampling mode")
)

// MinSampleSize is the smallest sample size accepted.
const MinSampleSize = 10

// Thresholds below which a run proceeds with a warning.
const (
	WarnNumResamples    = 1000
	WarnConfidenceLevel = 0.5
)

// -----------------------------------------------------------------------------
// Validator
// -----------------------------------------------------------------------------

// configValidate is the validator instance for benchmark configuration.
// Initialized in init() with the sampling mode check and yaml field names.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()

	configValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = configValidate.RegisterValidation("samplingmode", validateSamplingMode)
}

func validateSamplingMode(fl validator.FieldLevel) bool {
	mode, ok := fl.Field().Interface().(SamplingMode)
	return ok && mode.Valid()
}

// -----------------------------------------------------------------------------
// Sampling Mode
// -----------------------------------------------------------------------------

// SamplingMode selects the shape of the sampling plan.
//
// The numeric codes (0 auto, 1 linear, 2 flat) are stable and accepted in
// configuration files alongside the names.
type SamplingMode int

const (
	// Auto picks linear unless it would overshoot the measurement time.
	Auto SamplingMode = iota
	// Linear forces a linear plan.
	Linear
	// Flat forces a flat plan.
	Flat
)

// String returns the lowercase name of the mode.
func (m SamplingMode) String() string {
	switch m {
	case Auto:
		return "auto"
	case Linear:
		return "linear"
	case Flat:
		return "flat"
	default:
		return fmt.Sprintf("sampling_mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the defined modes.
func (m SamplingMode) Valid() bool {
	return m >= Auto && m <= Flat
}

// ParseSamplingMode converts a name or numeric code to a SamplingMode.
func ParseSamplingMode(s string) (SamplingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "0":
		return Auto, nil
	case "linear", "1":
		return Linear, nil
	case "flat", "2":
		return Flat, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSamplingMode, s)
	}
}

// Set implements the flag value interface used by the CLI.
func (m *SamplingMode) Set(s string) error {
	parsed, err := ParseSamplingMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Type implements the flag value interface used by the CLI.
func (m *SamplingMode) Type() string {
	return "mode"
}

// MarshalYAML writes the mode by name.
func (m SamplingMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// UnmarshalYAML accepts a name or numeric code.
func (m *SamplingMode) UnmarshalYAML(node *yaml.Node) error {
	return m.Set(node.Value)
}

// -----------------------------------------------------------------------------
// Config
// -----------------------------------------------------------------------------

// Config is the statistical configuration of one benchmark.
//
// Durations are wall-clock targets. The engine converts them to
// milliseconds once, before warmup.
type Config struct {
	// WarmupTime is how long the routine runs before measurement.
	WarmupTime time.Duration `yaml:"warmup_time" validate:"gt=0"`

	// MeasurementTime is the target total time of the sampling plan.
	MeasurementTime time.Duration `yaml:"measurement_time" validate:"gt=0"`

	// SampleSize is the number of measurement slots.
	SampleSize int `yaml:"sample_size" validate:"gte=10"`

	// NumResamples is the number of bootstrap draws per distribution.
	NumResamples int `yaml:"num_resamples" validate:"gte=1"`

	// SamplingMode selects auto, linear or flat plans.
	SamplingMode SamplingMode `yaml:"sampling_mode" validate:"samplingmode"`

	// ConfidenceLevel is the two-sided interval level.
	ConfidenceLevel float64 `yaml:"confidence_level" validate:"gt=0,lt=1"`

	// SignificanceLevel is the p-value cutoff for reporting a change.
	SignificanceLevel float64 `yaml:"significance_level" validate:"gt=0,lt=1"`

	// NoiseThreshold is the relative change treated as noise.
	NoiseThreshold float64 `yaml:"noise_threshold" validate:"gte=0"`
}

// Default returns the standard configuration.
//
// Description:
//
//	Returns a Config with:
//	- 3s warmup, 5s measurement
//	- 100 samples, 100000 resamples
//	- automatic plan selection
//	- 95% confidence, 5% significance, 1% noise threshold
//
// Outputs:
//
//	Config - Ready-to-use configuration
func Default() Config {
	return Config{
		WarmupTime:        3 * time.Second,
		MeasurementTime:   5 * time.Second,
		SampleSize:        100,
		NumResamples:      100000,
		SamplingMode:      Auto,
		ConfidenceLevel:   0.95,
		SignificanceLevel: 0.05,
		NoiseThreshold:    0.01,
	}
}

// WarmupMs returns WarmupTime in milliseconds.
func (c Config) WarmupMs() float64 {
	return durationMs(c.WarmupTime)
}

// MeasurementMs returns MeasurementTime in milliseconds.
func (c Config) MeasurementMs() float64 {
	return durationMs(c.MeasurementTime)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Warnings are non-fatal configuration findings.
type Warnings []string

// Validate checks the configuration.
//
// Description:
//
//	Runs the struct tag validation and converts each failure into a
//	readable message. Settings that only weaken the statistics are
//	returned as warnings and never cause an error.
//
// Outputs:
//
//	Warnings - Non-fatal findings. May be non-empty even on error.
//	error - Wraps ErrInvalidConfig listing every failing field.
//
// Example:
//
//	warnings, err := cfg.Validate()
//	if err != nil {
//	    return err
//	}
//	for _, w := range warnings {
//	    logger.Warn(w)
//	}
func (c Config) Validate() (Warnings, error) {
	var warnings Warnings
	if c.NumResamples >= 1 && c.NumResamples < WarnNumResamples {
		warnings = append(warnings, fmt.Sprintf(
			"num_resamples is %d; fewer than %d resamples gives unstable intervals",
			c.NumResamples, WarnNumResamples))
	}
	if c.ConfidenceLevel > 0 && c.ConfidenceLevel < WarnConfidenceLevel {
		warnings = append(warnings, fmt.Sprintf(
			"confidence_level is %v; levels below %v produce very narrow intervals",
			c.ConfidenceLevel, WarnConfidenceLevel))
	}

	err := configValidate.Struct(c)
	if err == nil {
		return warnings, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return warnings, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return warnings, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// describe renders one field failure.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("%s must be less than %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "samplingmode":
		return fmt.Sprintf("%s: %v: %v", fe.Field(), ErrUnknownSamplingMode, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s check (got %v)", fe.Field(), fe.Tag(), fe.Value())
	}
}

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Option overrides one setting of a Config.
type Option func(*Config)

// With returns a copy of c with opts applied in order.
func (c Config) With(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithWarmupTime sets the warmup duration.
func WithWarmupTime(d time.Duration) Option {
	return func(c *Config) { c.WarmupTime = d }
}

// WithMeasurementTime sets the target measurement duration.
func WithMeasurementTime(d time.Duration) Option {
	return func(c *Config) { c.MeasurementTime = d }
}

// WithSampleSize sets the number of measurement slots.
func WithSampleSize(n int) Option {
	return func(c *Config) { c.SampleSize = n }
}

// WithNumResamples sets the bootstrap draw count.
func WithNumResamples(n int) Option {
	return func(c *Config) { c.NumResamples = n }
}

// WithSamplingMode sets the plan selection mode.
func WithSamplingMode(m SamplingMode) Option {
	return func(c *Config) { c.SamplingMode = m }
}

// WithConfidenceLevel sets the interval level.
func WithConfidenceLevel(level float64) Option {
	return func(c *Config) { c.ConfidenceLevel = level }
}

// WithSignificanceLevel sets the p-value cutoff.
func WithSignificanceLevel(level float64) Option {
	return func(c *Config) { c.SignificanceLevel = level }
}

// WithNoiseThreshold sets the relative noise band.
func WithNoiseThreshold(noise float64) Option {
	return func(c *Config) { c.NoiseThreshold = noise }
}

// Replace overwrites every setting with c. Later options still apply on
// top, so Replace(fileCfg) followed by flag overrides works as expected.
func Replace(c Config) Option {
	return func(dst *Config) { *dst = c }
}
