// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the AleutianBench CLI.
package ux

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	// Semantic colors
	ColorSuccess = lipgloss.Color("#2CD7C7") // Bright teal for success
	ColorWarning = lipgloss.Color("#F4D03F") // Gold/amber for warnings
	ColorError   = lipgloss.Color("#E74C3C") // Red for errors
	ColorMuted   = lipgloss.Color("#7F8C8D") // Grey for bounds and secondary text
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
	Box       lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorMuted),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
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
	default:
		return string(i)
	}
}

// Printer writes styled lines to one destination.
//
// Styling and icons follow the personality level, so the same calls
// produce colored output on a terminal and plain text in a pipe.
//
// Thread Safety: Safe for concurrent use; each call writes whole lines.
type Printer struct {
	w     io.Writer
	level PersonalityLevel
	mu    sync.Mutex
}

// NewPrinter creates a Printer. An empty level is detected from w.
func NewPrinter(w io.Writer, level PersonalityLevel) *Printer {
	if level == "" {
		level = DetectPersonality(w)
	}
	return &Printer{w: w, level: level}
}

// Level returns the personality level in use.
func (p *Printer) Level() PersonalityLevel {
	return p.level
}

// Style renders text with s when colors are enabled.
func (p *Printer) Style(s lipgloss.Style, text string) string {
	if !p.level.ShowColors() {
		return text
	}
	return s.Render(text)
}

// Println writes the parts joined by single spaces.
func (p *Printer) Println(parts ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, strings.Join(parts, " "))
}

// Printf writes a formatted line; a trailing newline is added if missing.
func (p *Printer) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	io.WriteString(p.w, line)
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	p.status(IconWarning, "WARN", Styles.Warning, text)
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	p.status(IconError, "ERROR", Styles.Error, text)
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	p.status(IconSuccess, "OK", Styles.Success, text)
}

func (p *Printer) status(icon Icon, prefix string, s lipgloss.Style, text string) {
	switch {
	case !p.level.ShowIcons():
		p.Printf("%s: %s", prefix, text)
	case !p.level.ShowColors():
		p.Printf("%s %s", icon, text)
	default:
		p.Printf("%s %s", icon.Render(), s.Render(text))
	}
}

// Box prints text in a rounded box, or as "title: content" in machine mode.
func (p *Printer) Box(title, content string) {
	if !p.level.ShowColors() {
		p.Printf("%s: %s", title, content)
		return
	}
	p.Println(Styles.Box.Render(Styles.Title.Render(title) + "\n" + content))
}
