package ui

import (
	"errors"
	"strings"
	"testing"
)

func TestResultRenderKeepsDetailOrder(t *testing.T) {
	out := NewSuccessResult("Memfault Build Id",
		Param{Key: "Build ID", Value: "0123abcd"},
		Param{Key: "Symbol", Value: "g_memfault_sdk_derived_build_id"},
		Param{Key: "Short length", Value: "7"},
	).SetWidth(80).Render()

	first := strings.Index(out, "Build ID:")
	second := strings.Index(out, "Symbol:")
	third := strings.Index(out, "Short length:")
	if first < 0 || second < 0 || third < 0 {
		t.Fatalf("missing details in:\n%s", out)
	}
	if !(first < second && second < third) {
		t.Errorf("details rendered out of order:\n%s", out)
	}
	if !strings.Contains(out, "SUCCESS") {
		t.Errorf("missing SUCCESS title:\n%s", out)
	}
}

func TestFailureRender(t *testing.T) {
	out := RenderFailure("Could not read build ID", errors.New("symbol not found"), []string{"Link the SDK"})

	for _, want := range []string{"FAILED", "Error: symbol not found", "Troubleshooting:", "Link the SDK"} {
		if !strings.Contains(out, want) {
			t.Errorf("failure box missing %q:\n%s", want, out)
		}
	}
}

func TestWarningRender(t *testing.T) {
	out := NewWarningResult("Build ID is stale").AddDetail("Stored", "aa").SetWidth(10).Render()
	if !strings.Contains(out, "WARNING") || !strings.Contains(out, "Stored:") {
		t.Errorf("unexpected warning box:\n%s", out)
	}
}

func TestHeaderRender(t *testing.T) {
	out := NewHeader("Build ID", "fw-build-id info", Param{Key: "ELF", Value: "fw.elf"}).SetWidth(70).Render()
	for _, want := range []string{"BUILD ID", "fw-build-id info", "ELF:", "fw.elf"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q:\n%s", want, out)
		}
	}
}

func TestTableRender(t *testing.T) {
	out := NewTable("Section", "Kind").
		AddRow(false, ".text", "text").
		AddRow(true, ".comment", "unallocated").
		Render()

	for _, want := range []string{"Section", ".text", ".comment", "unallocated"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestGetTerminalWidthBounds(t *testing.T) {
	w := GetTerminalWidth()
	if w < MinTerminalWidth || w > MaxContentWidth {
		t.Errorf("GetTerminalWidth() = %d, want within [%d, %d]", w, MinTerminalWidth, MaxContentWidth)
	}
}
