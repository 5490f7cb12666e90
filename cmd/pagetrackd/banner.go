// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/common-nighthawk/go-figure"
	"golang.org/x/term"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && term.IsTerminal(int(f.Fd()))
}

// printBanner writes the startup banner. Colors are downsampled to what w
// supports and stripped when w is not a terminal.
func printBanner(w io.Writer, cfg *Config, version string) {
	cpw := colorprofile.NewWriter(w, os.Environ())

	gradient := []string{"12", "14", "10", "11"}
	var art strings.Builder
	for _, line := range figure.NewFigure(cfg.Telemetry.ServiceName, "", false).Slicify() {
		if strings.TrimSpace(line) == "" {
			continue
		}
		for i, char := range line {
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(gradient[i%len(gradient)])).
				Bold(true)
			art.WriteString(style.Render(string(char)))
		}
		art.WriteString("\n")
	}

	categoryStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Width(14).
		PaddingLeft(2)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	disabledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	addr := cfg.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "0.0.0.0" + addr
	}

	row := func(b *strings.Builder, label, value string) {
		rendered := valueStyle.Render(value)
		if value == "" || value == "none" {
			rendered = disabledStyle.Render("disabled")
		}
		b.WriteString(labelStyle.Render(label) + "  " + rendered + "\n")
	}

	var out strings.Builder
	out.WriteString(art.String() + "\n")
	out.WriteString(categoryStyle.Render("Service") + "\n")
	row(&out, "Version:", version)
	row(&out, "Address:", "http://"+addr)

	out.WriteString("\n" + categoryStyle.Render("Tracking") + "\n")
	row(&out, "Domain:", cfg.Tracking.Domain)
	row(&out, "Account:", cfg.Tracking.Account)

	out.WriteString("\n" + categoryStyle.Render("Observability") + "\n")
	row(&out, "Traces:", cfg.Telemetry.Traces)
	metrics := cfg.Telemetry.Metrics
	if metrics == "prometheus" {
		metrics += " (" + cfg.Telemetry.MetricsPath + ")"
	}
	row(&out, "Metrics:", metrics)

	_, _ = io.WriteString(cpw, out.String()+"\n") //nolint:errcheck // banner output is best-effort
}
