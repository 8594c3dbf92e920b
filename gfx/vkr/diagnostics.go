// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// Entry points of the debug report extension.
const (
	CreateDebugReportProc  = "vkCreateDebugReportCallbackEXT"
	DestroyDebugReportProc = "vkDestroyDebugReportCallbackEXT"
)

// Severity orders driver messages.
type Severity int

// Message severities, least severe first.
const (
	SeverityVerbose Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityVerbose:
		return "verbose"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity turns a name back into a Severity.
func ParseSeverity(name string) (Severity, error) {
	for s := SeverityVerbose; s <= SeverityError; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return SeverityVerbose, fmt.Errorf("unknown severity %q", name)
}

// Category is a set of message categories.
type Category uint32

// Message categories.
const (
	CategoryGeneral Category = 1 << iota
	CategoryValidation
	CategoryPerformance

	AllCategories = CategoryGeneral | CategoryValidation | CategoryPerformance
)

// DiagnosticsConfig configures the diagnostics channel.
type DiagnosticsConfig struct {
	Enabled     bool
	MinSeverity Severity
	Categories  Category

	// Optional turns a missing extension into a disabled channel
	// instead of a setup failure.
	Optional bool
}

// Message is a single driver diagnostic.
type Message struct {
	Severity Severity
	Category Category
	Layer    string
	Code     int32
	Object   uint64
	Text     string
}

// Sink receives filtered messages. It must not call back into the driver.
type Sink func(Message)

// LogrusSink writes messages to logger at a level matching their severity.
func LogrusSink(logger log.FieldLogger) Sink {
	return func(m Message) {
		entry := logger.WithFields(log.Fields{
			"layer": m.Layer,
			"code":  m.Code,
		})
		switch m.Severity {
		case SeverityError:
			entry.Error(m.Text)
		case SeverityWarning:
			entry.Warn(m.Text)
		case SeverityInfo:
			entry.Info(m.Text)
		default:
			entry.Debug(m.Text)
		}
	}
}

// reportClasses files each debug report bit under a severity and a
// category, most severe first.
var reportClasses = []struct {
	bit      vk.DebugReportFlagBits
	severity Severity
	category Category
}{
	{vk.DebugReportErrorBit, SeverityError, CategoryValidation},
	{vk.DebugReportPerformanceWarningBit, SeverityWarning, CategoryPerformance},
	{vk.DebugReportWarningBit, SeverityWarning, CategoryValidation},
	{vk.DebugReportInformationBit, SeverityInfo, CategoryGeneral},
	{vk.DebugReportDebugBit, SeverityVerbose, CategoryGeneral},
}

// ReportFlags maps a severity threshold and category set onto debug
// report flags. Only bits that Classify files inside the filter are set.
func ReportFlags(min Severity, categories Category) vk.DebugReportFlags {
	var flags vk.DebugReportFlags
	for _, class := range reportClasses {
		if class.severity >= min && class.category&categories != 0 {
			flags |= vk.DebugReportFlags(class.bit)
		}
	}
	return flags
}

// Classify maps debug report flags onto a severity and category.
func Classify(flags vk.DebugReportFlags) (Severity, Category) {
	for _, class := range reportClasses {
		if flags&vk.DebugReportFlags(class.bit) != 0 {
			return class.severity, class.category
		}
	}
	return SeverityVerbose, CategoryGeneral
}

// Diagnostics is the registered message channel. The zero value is a
// disabled channel.
type Diagnostics struct {
	config    DiagnosticsConfig
	sink      Sink
	registrar DiagnosticsRegistrar
	callback  DebugCallback
}

// NewDiagnostics sets up the channel. When diagnostics are enabled the
// creation entry point must resolve and registration must succeed,
// otherwise ErrDiagnosticsSetup is returned.
func NewDiagnostics(loader *Loader, registrar DiagnosticsRegistrar, cfg DiagnosticsConfig, sink Sink) (*Diagnostics, error) {
	if !cfg.Enabled {
		return &Diagnostics{}, nil
	}
	if sink == nil {
		sink = LogrusSink(log.StandardLogger())
	}

	_, hasCreate := loader.Resolve(CreateDebugReportProc)
	_, hasDestroy := loader.Resolve(DestroyDebugReportProc)
	if !hasCreate || !hasDestroy {
		if cfg.Optional {
			log.Warn("debug report extension not present, diagnostics disabled")
			return &Diagnostics{}, nil
		}
		return nil, newError(PhaseDiagnostics, ErrDiagnosticsSetup,
			fmt.Errorf("%s not present, is the validation layer installed?", CreateDebugReportProc))
	}

	d := &Diagnostics{
		config:    cfg,
		sink:      sink,
		registrar: registrar,
	}
	cb, err := registrar.RegisterDiagnostics(ReportFlags(cfg.MinSeverity, cfg.Categories), d.Deliver)
	if err != nil {
		return nil, newError(PhaseDiagnostics, ErrDiagnosticsSetup, err)
	}
	d.callback = cb

	log.WithFields(log.Fields{
		"severity":   cfg.MinSeverity,
		"categories": fmt.Sprintf("%03b", cfg.Categories),
	}).Debug("diagnostics registered")
	return d, nil
}

// Enabled reports whether a callback is registered.
func (d *Diagnostics) Enabled() bool {
	return d.callback != 0
}

// Deliver filters a raw driver message and hands it to the sink. It
// always returns false so the triggering call is never aborted.
func (d *Diagnostics) Deliver(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, layer string, code int32, text string) bool {
	if d.sink == nil {
		return false
	}
	severity, category := Classify(flags)
	if severity < d.config.MinSeverity || category&d.config.Categories == 0 {
		return false
	}
	d.sink(Message{
		Severity: severity,
		Category: category,
		Layer:    layer,
		Code:     code,
		Object:   object,
		Text:     text,
	})
	return false
}

// Release unregisters the callback. Must run before the instance is
// destroyed.
func (d *Diagnostics) Release() {
	if d.callback == 0 {
		return
	}
	d.registrar.UnregisterDiagnostics(d.callback)
	d.callback = 0
}
