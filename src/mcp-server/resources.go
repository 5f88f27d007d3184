// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Resource URIs.
const (
	uriConfigTemplate = "config://template"
	uriVersion        = "info://version"
	uriSearchTemplate = "sslmate://search/{domain}"
	searchURIPrefix   = "sslmate://search/"
)

// catalog describes what a built server exposes. It backs info://version.
type catalog struct {
	name      string
	version   string
	tools     []catalogEntry
	resources []catalogEntry
	prompts   []catalogEntry
}

// catalogEntry is one named capability with its description.
type catalogEntry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Role        string `json:"role,omitempty"`
}

// fill records the final capability set. It runs once, before the server is returned.
func (c *catalog) fill(tools []ToolDefinition, resources []server.ServerResource, tmpls []ServerResourceTemplate, prompts []server.ServerPrompt) {
	for _, t := range tools {
		c.tools = append(c.tools, catalogEntry{Name: t.Tool.Name, Description: t.Tool.Description, Role: t.Role})
	}
	for _, r := range resources {
		c.resources = append(c.resources, catalogEntry{Name: r.Resource.URI, Description: r.Resource.Description})
	}
	for _, t := range tmpls {
		c.resources = append(c.resources, catalogEntry{Name: t.Template.URITemplate.Raw(), Description: t.Template.Description})
	}
	for _, p := range prompts {
		c.prompts = append(c.prompts, catalogEntry{Name: p.Prompt.Name, Description: p.Prompt.Description})
	}
	sort.Slice(c.resources, func(i, j int) bool { return c.resources[i].Name < c.resources[j].Name })
	sort.Slice(c.prompts, func(i, j int) bool { return c.prompts[i].Name < c.prompts[j].Name })
}

// createResources creates the static resources of the server.
//
// Parameters:
//   - cat: Catalog rendered by info://version
//   - config: Resolved configuration, used to render config://template
//
// Returns:
//   - config://template: example configuration with every setting at its default
//   - info://version: server name, version and capability listing
func createResources(cat *catalog, config *Config) []server.ServerResource {
	return []server.ServerResource{
		{
			Resource: mcp.NewResource(
				uriConfigTemplate,
				"Configuration Template",
				mcp.WithResourceDescription("Example configuration file with every setting at its default value"),
				mcp.WithMIMEType("application/json"),
			),
			Handler: handleConfigResource,
		},
		{
			Resource: mcp.NewResource(
				uriVersion,
				"Version Information",
				mcp.WithResourceDescription("Server name, version and the tools, resources and prompts it exposes"),
				mcp.WithMIMEType("application/json"),
			),
			Handler: cat.handleVersionResource,
		},
	}
}

// createResourceTemplates creates the URI-templated resources of the server.
// sslmate://search/{domain} runs a default search through d.
func createResourceTemplates(d *Dispatcher, config *Config) []ServerResourceTemplate {
	sr := &searchResource{dispatcher: d, limit: config.Defaults.Limit}
	return []ServerResourceTemplate{
		{
			Template: mcp.NewResourceTemplate(
				uriSearchTemplate,
				"Certificate Search",
				mcp.WithTemplateDescription("Unexpired certificates issued for a domain, as returned by search_certificates"),
				mcp.WithTemplateMIMEType("application/json"),
			),
			Handler: sr.handle,
		},
	}
}
