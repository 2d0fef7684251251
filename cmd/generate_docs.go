package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/agenda/internal/dispatch"
	"github.com/teemow/agenda/internal/server"
	"github.com/teemow/agenda/internal/source"
	"github.com/teemow/agenda/internal/tools/calendar_tools"
)

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools.
The tools are registered against an empty calendar source and introspected,
so the documentation always matches the tool definitions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			markdown, err := toolsDocumentation()
			if err != nil {
				return err
			}
			if outputFile == "" {
				return writeOutput(cmd, markdown)
			}
			if err := os.WriteFile(outputFile, []byte(markdown), 0o644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), successLine("Documentation written to "+outputFile))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func toolsDocumentation() (string, error) {
	// Describing the tools needs no credentials.
	sc := server.NewServerContext(context.Background(), dispatch.New(&source.Memory{SourceName: "docs"}))
	defer func() { _ = sc.Shutdown() }()

	mcpSrv := mcpserver.NewMCPServer("agenda", version, mcpserver.WithToolCapabilities(true))
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, sc); err != nil {
		return "", fmt.Errorf("failed to register tools: %w", err)
	}

	var tools []mcp.Tool
	for _, st := range mcpSrv.ListTools() {
		tools = append(tools, st.Tool)
	}
	return generateToolsMarkdown(tools), nil
}

// toolCategories lists the sections in output order.
var toolCategories = []string{"Calendar Tools", "Planning Tools", "Time Tools"}

func toolCategory(name string) string {
	switch name {
	case dispatch.OpCurrentTime, dispatch.OpConvertTime, dispatch.OpListTimezones:
		return "Time Tools"
	case dispatch.OpDailySummary, dispatch.OpFreeSlots:
		return "Planning Tools"
	default:
		return "Calendar Tools"
	}
}

func generateToolsMarkdown(tools []mcp.Tool) string {
	byCategory := make(map[string][]mcp.Tool)
	for _, tool := range tools {
		c := toolCategory(tool.Name)
		byCategory[c] = append(byCategory[c], tool)
	}

	var b strings.Builder
	b.WriteString("# MCP Tools Reference\n\n")
	b.WriteString("Tools served by `agenda serve`. Every tool is read-only. Generated from the tool definitions by `agenda generate-docs`.\n\n")

	b.WriteString("## Table of Contents\n\n")
	for _, c := range toolCategories {
		if len(byCategory[c]) > 0 {
			fmt.Fprintf(&b, "- [%s](#%s)\n", c, strings.ToLower(strings.ReplaceAll(c, " ", "-")))
		}
	}

	b.WriteString("\n## Output Encoding\n\n")
	b.WriteString("Every tool accepts `encoding`: `text` (Markdown, default) or `json`. JSON output is an envelope ")
	b.WriteString("`{\"schemaVersion\", \"kind\", \"data\"}` described by the `agenda://schema` resource.\n")

	for _, c := range toolCategories {
		list := byCategory[c]
		if len(list) == 0 {
			continue
		}
		slices.SortFunc(list, func(x, y mcp.Tool) int { return strings.Compare(x.Name, y.Name) })
		fmt.Fprintf(&b, "\n## %s\n", c)
		for _, tool := range list {
			writeToolMarkdown(&b, tool)
		}
	}
	return b.String()
}

func writeToolMarkdown(b *strings.Builder, tool mcp.Tool) {
	fmt.Fprintf(b, "\n### %s\n\n", tool.Name)
	if tool.Description != "" {
		b.WriteString(tool.Description + "\n\n")
	}

	props := tool.InputSchema.Properties
	if len(props) == 0 {
		return
	}
	b.WriteString("**Arguments:**\n")
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if prop, ok := props[name].(map[string]any); ok {
			b.WriteString(argumentLine(name, prop, slices.Contains(tool.InputSchema.Required, name)))
		}
	}
}

// argumentLine renders "- `name` (type, required|optional): description".
func argumentLine(name string, prop map[string]any, required bool) string {
	typ, _ := prop["type"].(string)
	if typ == "" {
		typ = "any"
	}
	presence := "optional"
	if required {
		presence = "required"
	}
	desc, _ := prop["description"].(string)
	if desc == "" {
		desc = typ + " parameter"
	}
	return fmt.Sprintf("- `%s` (%s, %s): %s\n", name, typ, presence, desc)
}
