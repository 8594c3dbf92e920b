// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr_test

import (
	"errors"
	"testing"

	"github.com/devblok/koructx/gfx/vkr"
	vk "github.com/devblok/vulkan"
)

func TestDiagnosticsDisabled(t *testing.T) {
	p := newFakePlatform().withDebugReport()
	d, err := vkr.NewDiagnostics(vkr.NewLoader(p.Procs()), p, vkr.DiagnosticsConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Enabled() {
		t.Error("disabled channel reports enabled")
	}
	if p.registered != nil {
		t.Error("disabled channel registered a callback")
	}
	d.Release()
	if p.unregistered != 0 {
		t.Error("disabled channel unregistered a callback")
	}
}

func TestDiagnosticsMissingExtension(t *testing.T) {
	p := newFakePlatform()
	cfg := vkr.DiagnosticsConfig{Enabled: true, Categories: vkr.AllCategories}

	_, err := vkr.NewDiagnostics(vkr.NewLoader(p.Procs()), p, cfg, nil)
	if !errors.Is(err, vkr.ErrDiagnosticsSetup) {
		t.Fatalf("expected ErrDiagnosticsSetup, got %v", err)
	}
	if vkr.PhaseOf(err) != vkr.PhaseDiagnostics {
		t.Errorf("phase %q", vkr.PhaseOf(err))
	}
}

func TestDiagnosticsOptionalDegrades(t *testing.T) {
	p := newFakePlatform()
	cfg := vkr.DiagnosticsConfig{Enabled: true, Categories: vkr.AllCategories, Optional: true}

	d, err := vkr.NewDiagnostics(vkr.NewLoader(p.Procs()), p, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Enabled() {
		t.Error("channel enabled without the extension")
	}
}

func TestDiagnosticsRegisterFailure(t *testing.T) {
	p := newFakePlatform().withDebugReport()
	p.registerErr = errInjected
	cfg := vkr.DiagnosticsConfig{Enabled: true, Categories: vkr.AllCategories}

	_, err := vkr.NewDiagnostics(vkr.NewLoader(p.Procs()), p, cfg, nil)
	if !errors.Is(err, vkr.ErrDiagnosticsSetup) {
		t.Fatalf("expected ErrDiagnosticsSetup, got %v", err)
	}
	if !errors.Is(err, errInjected) {
		t.Errorf("cause lost: %v", err)
	}
}

func TestDiagnosticsDeliver(t *testing.T) {
	p := newFakePlatform().withDebugReport()
	var got []vkr.Message
	cfg := vkr.DiagnosticsConfig{
		Enabled:     true,
		MinSeverity: vkr.SeverityWarning,
		Categories:  vkr.CategoryValidation,
	}
	d, err := vkr.NewDiagnostics(vkr.NewLoader(p.Procs()), p, cfg, func(m vkr.Message) {
		got = append(got, m)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Enabled() || p.registered == nil {
		t.Fatal("callback not registered")
	}

	deliver := func(bit vk.DebugReportFlagBits, text string) bool {
		return p.registered(vk.DebugReportFlags(bit), vk.DebugReportObjectTypeUnknown, 0, "validation", 3, text)
	}
	if deliver(vk.DebugReportErrorBit, "bad handle") {
		t.Error("callback asked to abort the call")
	}
	if deliver(vk.DebugReportInformationBit, "chatter") {
		t.Error("callback asked to abort the call")
	}
	if deliver(vk.DebugReportPerformanceWarningBit, "slow path") {
		t.Error("callback asked to abort the call")
	}
	deliver(vk.DebugReportWarningBit, "odd usage")

	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(got), got)
	}
	if got[0].Severity != vkr.SeverityError || got[0].Text != "bad handle" || got[0].Layer != "validation" {
		t.Errorf("first message %+v", got[0])
	}
	if got[1].Severity != vkr.SeverityWarning || got[1].Text != "odd usage" {
		t.Errorf("second message %+v", got[1])
	}

	d.Release()
	d.Release()
	if p.unregistered != 1 {
		t.Errorf("unregistered %d times", p.unregistered)
	}
	if d.Enabled() {
		t.Error("released channel still enabled")
	}
}

func TestReportFlags(t *testing.T) {
	has := func(flags vk.DebugReportFlags, bit vk.DebugReportFlagBits) bool {
		return flags&vk.DebugReportFlags(bit) != 0
	}

	all := vkr.ReportFlags(vkr.SeverityVerbose, vkr.AllCategories)
	for _, bit := range []vk.DebugReportFlagBits{
		vk.DebugReportDebugBit,
		vk.DebugReportInformationBit,
		vk.DebugReportWarningBit,
		vk.DebugReportPerformanceWarningBit,
		vk.DebugReportErrorBit,
	} {
		if !has(all, bit) {
			t.Errorf("verbose/all misses bit %#x", uint32(bit))
		}
	}

	warn := vkr.ReportFlags(vkr.SeverityWarning, vkr.CategoryValidation)
	if has(warn, vk.DebugReportInformationBit) || has(warn, vk.DebugReportDebugBit) {
		t.Error("warning threshold requests informational messages")
	}
	if has(warn, vk.DebugReportPerformanceWarningBit) {
		t.Error("performance warnings requested without the category")
	}
	if !has(warn, vk.DebugReportWarningBit) || !has(warn, vk.DebugReportErrorBit) {
		t.Error("warning threshold misses warnings or errors")
	}

	perf := vkr.ReportFlags(vkr.SeverityError, vkr.CategoryPerformance)
	if perf != 0 {
		t.Errorf("errors of the performance category map to %#x", uint32(perf))
	}
}

func TestReportFlagsMatchFilter(t *testing.T) {
	bits := []vk.DebugReportFlagBits{
		vk.DebugReportDebugBit,
		vk.DebugReportInformationBit,
		vk.DebugReportWarningBit,
		vk.DebugReportPerformanceWarningBit,
		vk.DebugReportErrorBit,
	}
	categories := []vkr.Category{
		vkr.CategoryGeneral,
		vkr.CategoryValidation,
		vkr.CategoryPerformance,
		vkr.CategoryGeneral | vkr.CategoryPerformance,
		vkr.AllCategories,
	}
	for min := vkr.SeverityVerbose; min <= vkr.SeverityError; min++ {
		for _, cats := range categories {
			flags := vkr.ReportFlags(min, cats)
			for _, bit := range bits {
				severity, category := vkr.Classify(vk.DebugReportFlags(bit))
				kept := severity >= min && category&cats != 0
				requested := flags&vk.DebugReportFlags(bit) != 0
				if kept != requested {
					t.Errorf("min %v categories %03b bit %#x: requested %v, kept by filter %v",
						min, cats, uint32(bit), requested, kept)
				}
			}
		}
	}

	general := vkr.ReportFlags(vkr.SeverityVerbose, vkr.CategoryGeneral)
	if general&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0 {
		t.Error("general category requests errors that are filed as validation")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		bit      vk.DebugReportFlagBits
		severity vkr.Severity
		category vkr.Category
	}{
		{vk.DebugReportErrorBit, vkr.SeverityError, vkr.CategoryValidation},
		{vk.DebugReportWarningBit, vkr.SeverityWarning, vkr.CategoryValidation},
		{vk.DebugReportPerformanceWarningBit, vkr.SeverityWarning, vkr.CategoryPerformance},
		{vk.DebugReportInformationBit, vkr.SeverityInfo, vkr.CategoryGeneral},
		{vk.DebugReportDebugBit, vkr.SeverityVerbose, vkr.CategoryGeneral},
	}
	for _, tt := range tests {
		s, c := vkr.Classify(vk.DebugReportFlags(tt.bit))
		if s != tt.severity || c != tt.category {
			t.Errorf("bit %#x: got %v/%d, want %v/%d", uint32(tt.bit), s, c, tt.severity, tt.category)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	for s := vkr.SeverityVerbose; s <= vkr.SeverityError; s++ {
		got, err := vkr.ParseSeverity(s.String())
		if err != nil || got != s {
			t.Errorf("round trip of %v gave %v, %v", s, got, err)
		}
	}
	if _, err := vkr.ParseSeverity("loud"); err == nil {
		t.Error("expected error for unknown severity")
	}
}
