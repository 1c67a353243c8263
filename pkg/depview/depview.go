// Copyright (c) 2017-2026 Digital Asset (Switzerland) GmbH and/or its affiliates. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package depview renders resolution output for humans: the dependency
// tree of a graph and the tabular view of the workspace state.
package depview

import (
	"fmt"
	"strings"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/pkggraph"
	"daml.com/x/wpm/pkg/state"
	"daml.com/x/wpm/pkg/versionresolver"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"
)

var (
	rootStyle    = lipgloss.NewStyle().Bold(true)
	versionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	localStyle   = lipgloss.NewStyle().Faint(true).Italic(true)
)

// Tree renders the dependency graph as an indented tree, one line per
// package edge, versions from the solution where one exists.
func Tree(graph *pkggraph.Graph, solution versionresolver.Solution) string {
	var b strings.Builder
	for _, root := range graph.Roots {
		writeNode(&b, graph, solution, root, 0, map[identity.PackageIdentity]bool{})
	}
	return b.String()
}

func writeNode(b *strings.Builder, graph *pkggraph.Graph, solution versionresolver.Solution, id identity.PackageIdentity, depth int, onPath map[identity.PackageIdentity]bool) {
	node := graph.Nodes[id]
	if node == nil {
		return
	}

	b.WriteString(strings.Repeat("  ", depth))
	if depth == 0 {
		b.WriteString(rootStyle.Render(id.String()))
	} else {
		b.WriteString(id.String())
	}
	b.WriteString(decorate(node, solution))
	b.WriteByte('\n')

	if onPath[id] {
		return
	}
	onPath[id] = true
	for _, dep := range node.Dependencies {
		writeNode(b, graph, solution, dep, depth+1, onPath)
	}
	delete(onPath, id)
}

func decorate(node *pkggraph.ResolvedNode, solution versionresolver.Solution) string {
	if sel, ok := solution[node.PackageRef.Identity]; ok {
		switch {
		case sel.Version != nil:
			return " " + versionStyle.Render(sel.Version.String())
		case sel.Branch != "":
			return " " + versionStyle.Render(fmt.Sprintf("%s (%.8s)", sel.Branch, sel.Revision))
		case sel.Revision != "":
			return " " + versionStyle.Render(fmt.Sprintf("%.8s", sel.Revision))
		}
	}
	switch node.PackageRef.Kind {
	case identity.KindFileSystem, identity.KindLocalSourceControl:
		return " " + localStyle.Render(node.PackageRef.Location)
	}
	return ""
}

// StateTable renders the managed dependencies of a workspace state.
func StateTable(doc *state.WorkspaceState) string {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		Rows(lo.Map(doc.Dependencies, func(dep state.ManagedDependency, _ int) []string {
			return []string{
				dep.PackageRef.Identity.String(),
				string(dep.State.Name),
				stateDetail(dep),
			}
		})...).
		String()
}

func stateDetail(dep state.ManagedDependency) string {
	switch dep.State.Name {
	case state.StateCheckout:
		if dep.State.Version != "" {
			return versionStyle.Render(dep.State.Version)
		}
		return versionStyle.Render(fmt.Sprintf("%s (%.8s)", dep.State.Branch, dep.State.Revision))
	case state.StateRegistryDownload:
		return versionStyle.Render(dep.State.Version)
	case state.StateLocal, state.StateEdited:
		return localStyle.Render(dep.State.Path)
	}
	return ""
}
