// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the flowgraph CLI.
//
// Every printer takes the destination writer. In machine mode output is
// plain, tab-separated and free of ANSI sequences.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - deep ocean teals
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#2C4A54")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
	ErrorBox   lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconInfo    Icon = "ℹ"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconInfo, IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

func machine() bool {
	return GetPersonality().Level == PersonalityMachine
}

// Title prints a styled title. Silent in machine mode.
func Title(w io.Writer, text string) {
	if machine() {
		return
	}
	fmt.Fprintln(w, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func Success(w io.Writer, text string) {
	status(w, IconSuccess, "OK", text, Styles.Success)
}

// Warning prints a warning message
func Warning(w io.Writer, text string) {
	status(w, IconWarning, "WARN", text, Styles.Warning)
}

// Error prints an error message
func Error(w io.Writer, text string) {
	status(w, IconError, "ERROR", text, Styles.Error)
}

func status(w io.Writer, icon Icon, prefix, text string, style lipgloss.Style) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(w, "%s: %s\n", prefix, text)
	case PersonalityMinimal:
		fmt.Fprintf(w, "%s %s\n", icon.Render(), text)
	default:
		fmt.Fprintf(w, "%s %s\n", icon.Render(), style.Render(text))
	}
}

// Info prints an informational message
func Info(w io.Writer, text string) {
	if machine() {
		fmt.Fprintln(w, text)
		return
	}
	fmt.Fprintf(w, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text. Silent in machine mode.
func Muted(w io.Writer, text string) {
	if machine() {
		return
	}
	fmt.Fprintln(w, Styles.Muted.Render(text))
}

// Box prints text in a rounded box
func Box(w io.Writer, title, content string) {
	box(w, Styles.Box, Styles.Title, title, content)
}

// WarningBox prints text in a warning-styled box
func WarningBox(w io.Writer, title, content string) {
	box(w, Styles.WarningBox, Styles.Warning.Bold(true), title, content)
}

// ErrorBox prints text in an error-styled box
func ErrorBox(w io.Writer, title, content string) {
	box(w, Styles.ErrorBox, Styles.Error.Bold(true), title, content)
}

func box(w io.Writer, frame, heading lipgloss.Style, title, content string) {
	if machine() {
		fmt.Fprintf(w, "%s: %s\n", title, strings.ReplaceAll(content, "\n", "; "))
		return
	}
	fmt.Fprintln(w, frame.Width(72).Render(heading.Render(title)+"\n"+content))
}

// KeyValue prints an aligned key/value line. Machine mode prints
// key<TAB>value.
func KeyValue(w io.Writer, key string, value any) {
	if machine() {
		fmt.Fprintf(w, "%s\t%v\n", key, value)
		return
	}
	fmt.Fprintf(w, "  %s %v\n", Styles.Muted.Render(fmt.Sprintf("%-18s", key)), value)
}

// ProgressBar renders a simple progress bar
func ProgressBar(current, total int, width int) string {
	if machine() || total <= 0 {
		return fmt.Sprintf("%d/%d", current, total)
	}
	pct := float64(current) / float64(total)
	if pct > 1 {
		pct = 1
	}
	filled := int(pct * float64(width))
	bar := Styles.Success.Render(strings.Repeat("█", filled)) +
		Styles.Muted.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}
