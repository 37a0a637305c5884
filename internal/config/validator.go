package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/orchard/internal/chain"
	"github.com/Iron-Ham/orchard/internal/logging"
	"github.com/Iron-Ham/orchard/internal/report"
	"github.com/Iron-Ham/orchard/internal/search"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "run.pool_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidProgressStyles returns the list of valid progress styles
func ValidProgressStyles() []string {
	return []string{"auto", "bar", "plain", "none"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateRun()...)
	errors = append(errors, c.validateModel()...)
	errors = append(errors, c.validateProgress()...)
	errors = append(errors, c.validateOutput()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateRun() []ValidationError {
	var errors []ValidationError

	if c.Run.Chains < 1 {
		errors = append(errors, ValidationError{
			Field:   "run.chains",
			Value:   c.Run.Chains,
			Message: "must be at least 1",
		})
	} else if uint64(c.Run.Chains) > chain.MaxSeed {
		errors = append(errors, ValidationError{
			Field:   "run.chains",
			Value:   c.Run.Chains,
			Message: fmt.Sprintf("must not exceed %d", chain.MaxSeed),
		})
	}

	// 0 means one worker per CPU
	if c.Run.PoolSize < 0 {
		errors = append(errors, ValidationError{
			Field:   "run.pool_size",
			Value:   c.Run.PoolSize,
			Message: "must be non-negative",
		})
	}

	if c.Run.Seed < 0 {
		errors = append(errors, ValidationError{
			Field:   "run.seed",
			Value:   c.Run.Seed,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateModel() []ValidationError {
	var errors []ValidationError

	if _, err := search.ParseKind(c.Model.Kind); err != nil {
		kinds := make([]string, 0, len(search.ValidKinds()))
		for _, k := range search.ValidKinds() {
			kinds = append(kinds, string(k))
		}
		errors = append(errors, ValidationError{
			Field:   "model.kind",
			Value:   c.Model.Kind,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(kinds, ", ")),
		})
	}

	if c.Model.BeamWidth < 1 {
		errors = append(errors, ValidationError{
			Field:   "model.beam_width",
			Value:   c.Model.BeamWidth,
			Message: "must be at least 1",
		})
	}

	if c.Model.MaxPlacements < 0 {
		errors = append(errors, ValidationError{
			Field:   "model.max_placements",
			Value:   c.Model.MaxPlacements,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateProgress() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidProgressStyles(), c.Progress.Style) {
		errors = append(errors, ValidationError{
			Field:   "progress.style",
			Value:   c.Progress.Style,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidProgressStyles(), ", ")),
		})
	}

	if c.Progress.ChannelCapacity < 1 {
		errors = append(errors, ValidationError{
			Field:   "progress.channel_capacity",
			Value:   c.Progress.ChannelCapacity,
			Message: "must be at least 1",
		})
	}

	if c.Progress.PushTimeoutMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "progress.push_timeout_ms",
			Value:   c.Progress.PushTimeoutMs,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateOutput() []ValidationError {
	var errors []ValidationError

	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		formats := make([]string, 0, len(report.ValidFormats()))
		for _, f := range report.ValidFormats() {
			formats = append(formats, string(f))
		}
		errors = append(errors, ValidationError{
			Field:   "output.format",
			Value:   c.Output.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(formats, ", ")),
		})
	}

	if c.Output.Top < 0 {
		errors = append(errors, ValidationError{
			Field:   "output.top",
			Value:   c.Output.Top,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(logging.ValidLevels(), strings.ToUpper(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "must be one of: debug, info, warn, error",
		})
	}

	return errors
}
