// Package godot defines the static tool table for the Godot engine surface.
//
// Each definition binds one canonical dotted name (scene.create, debug.step)
// to a backend channel kind and method, plus the snake_case legacy alias the
// older surface advertised (create_scene) and, where one exists, a compact
// alias. The table is data only: the engine-side behavior behind each method
// lives in the bridge script, the editor addon, the language server, and the
// debug adapter.
package godot

import (
	"github.com/HaD0Yun/godot-mcp/channel"
	"github.com/HaD0Yun/godot-mcp/registry"
)

// Visibility presets. Compact advertises the curated core set; full
// advertises everything under canonical names; legacy advertises everything
// under the snake_case names.
var (
	core = registry.Visibility{Compact: true, Full: true, Legacy: true}
	wide = registry.Visibility{Full: true, Legacy: true}
)

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, r := range required {
			req[i] = r
		}
		s["required"] = req
	}
	return s
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

// Tools returns the full tool table. The slice is rebuilt on every call;
// callers own the result.
func Tools() []registry.Definition {
	return []registry.Definition{
		// Project family. Headless: every call is a fresh engine spawn.
		{
			Name:        "project.version",
			Description: "Report the engine version and feature set of the configured project.",
			LegacyAlias: "get_godot_version",
			Visibility:  core,
			Backend:     channel.KindHeadless,
			Method:      "project.version",
			InputSchema: objectSchema(map[string]any{}),
			Keywords:    []string{"version", "engine", "godot"},
		},
		{
			Name:        "project.info",
			Description: "Summarize the project: name, main scene, configured features.",
			LegacyAlias: "get_project_info",
			Visibility:  core,
			Backend:     channel.KindHeadless,
			Method:      "project.info",
			InputSchema: objectSchema(map[string]any{}),
			Keywords:    []string{"project", "settings", "info"},
		},
		{
			Name:        "project.setting_get",
			Description: "Read one project setting by its slash-separated path.",
			LegacyAlias: "get_project_setting",
			Visibility:  wide,
			Backend:     channel.KindHeadless,
			Method:      "project.setting_get",
			InputSchema: objectSchema(map[string]any{
				"setting": str("Setting path, e.g. application/run/main_scene."),
			}, "setting"),
			Keywords: []string{"project", "setting", "configuration"},
		},

		// Scene family.
		{
			Name:         "scene.create",
			Description:  "Create a new scene file with the given root node type.",
			LegacyAlias:  "create_scene",
			CompactAlias: "new_scene",
			Visibility:   core,
			Backend:      channel.KindHeadless,
			Method:       "scene.create",
			InputSchema: objectSchema(map[string]any{
				"path":      str("Destination res:// path for the .tscn file."),
				"root_type": str("Node class for the scene root, e.g. Node2D."),
				"root_name": str("Optional name for the root node."),
			}, "path", "root_type"),
			Keywords: []string{"scene", "create", "new", "tscn"},
		},
		{
			Name:        "scene.save",
			Description: "Save a modified scene back to its file.",
			LegacyAlias: "save_scene",
			Visibility:  wide,
			Backend:     channel.KindHeadless,
			Method:      "scene.save",
			InputSchema: objectSchema(map[string]any{
				"path": str("res:// path of the scene to save."),
			}, "path"),
			Keywords: []string{"scene", "save", "write"},
		},
		{
			Name:        "scene.tree",
			Description: "List the node tree of a scene file without opening the editor.",
			LegacyAlias: "get_scene_tree",
			Visibility:  core,
			Backend:     channel.KindHeadless,
			Method:      "scene.tree",
			InputSchema: objectSchema(map[string]any{
				"path":  str("res:// path of the scene."),
				"depth": integer("Maximum tree depth; omit for the full tree."),
			}, "path"),
			Keywords: []string{"scene", "tree", "nodes", "hierarchy"},
		},

		// Node family.
		{
			Name:        "node.add",
			Description: "Add a node of the given type under a parent path in a scene.",
			LegacyAlias: "add_node",
			Visibility:  core,
			Backend:     channel.KindHeadless,
			Method:      "node.add",
			InputSchema: objectSchema(map[string]any{
				"scene":  str("res:// path of the scene to modify."),
				"parent": str("Node path of the parent; '.' for the root."),
				"type":   str("Node class to instantiate, e.g. Sprite2D."),
				"name":   str("Name for the new node."),
			}, "scene", "parent", "type", "name"),
			Keywords: []string{"node", "add", "child", "scene"},
		},
		{
			Name:        "node.remove",
			Description: "Remove a node and its subtree from a scene.",
			LegacyAlias: "remove_node",
			Visibility:  wide,
			Backend:     channel.KindHeadless,
			Method:      "node.remove",
			InputSchema: objectSchema(map[string]any{
				"scene": str("res:// path of the scene to modify."),
				"node":  str("Node path of the node to remove."),
			}, "scene", "node"),
			Keywords: []string{"node", "remove", "delete"},
		},
		{
			Name:        "node.set_property",
			Description: "Set a property on a node in a scene file.",
			LegacyAlias: "set_node_property",
			Visibility:  core,
			Backend:     channel.KindHeadless,
			Method:      "node.set_property",
			InputSchema: objectSchema(map[string]any{
				"scene":    str("res:// path of the scene to modify."),
				"node":     str("Node path of the target node."),
				"property": str("Property name, e.g. position."),
				"value":    map[string]any{"description": "New property value."},
			}, "scene", "node", "property", "value"),
			Keywords: []string{"node", "property", "set", "value"},
		},

		// Script family. Authoring spawns the engine; analysis talks to the
		// language server.
		{
			Name:        "script.create",
			Description: "Create a script file attached to a node, from a class template.",
			LegacyAlias: "create_script",
			Visibility:  core,
			Backend:     channel.KindHeadless,
			Method:      "script.create",
			InputSchema: objectSchema(map[string]any{
				"path":    str("Destination res:// path for the .gd file."),
				"extends": str("Base class for the script, e.g. CharacterBody2D."),
				"scene":   str("Optional scene whose node receives the script."),
				"node":    str("Node path within the scene; requires scene."),
			}, "path", "extends"),
			Keywords: []string{"script", "create", "gdscript", "attach"},
		},
		{
			Name:        "script.diagnostics",
			Description: "Report parse and analysis errors for a script.",
			LegacyAlias: "get_script_errors",
			Visibility:  core,
			Backend:     channel.KindScript,
			Method:      "textDocument/diagnostic",
			InputSchema: objectSchema(map[string]any{
				"path": str("res:// path of the script."),
			}, "path"),
			Keywords: []string{"script", "errors", "diagnostics", "lint"},
		},
		{
			Name:        "script.symbols",
			Description: "List the symbols (functions, variables, signals) declared in a script.",
			LegacyAlias: "get_script_symbols",
			Visibility:  wide,
			Backend:     channel.KindScript,
			Method:      "textDocument/documentSymbol",
			InputSchema: objectSchema(map[string]any{
				"path": str("res:// path of the script."),
			}, "path"),
			Keywords: []string{"script", "symbols", "outline", "functions"},
		},
		{
			Name:        "script.hover",
			Description: "Resolve documentation for the symbol at a position in a script.",
			LegacyAlias: "hover_symbol",
			Visibility:  wide,
			Backend:     channel.KindScript,
			Method:      "textDocument/hover",
			InputSchema: objectSchema(map[string]any{
				"path":      str("res:// path of the script."),
				"line":      integer("Zero-based line of the symbol."),
				"character": integer("Zero-based column of the symbol."),
			}, "path", "line", "character"),
			Keywords: []string{"script", "hover", "documentation", "symbol"},
		},

		// Resource family.
		{
			Name:        "resource.create",
			Description: "Create a resource file of the given type with initial properties.",
			LegacyAlias: "create_resource",
			Visibility:  wide,
			Backend:     channel.KindHeadless,
			Method:      "resource.create",
			InputSchema: objectSchema(map[string]any{
				"path":       str("Destination res:// path for the .tres file."),
				"type":       str("Resource class, e.g. StandardMaterial3D."),
				"properties": map[string]any{"type": "object", "description": "Initial property values."},
			}, "path", "type"),
			Keywords: []string{"resource", "create", "material", "tres"},
		},
		{
			Name:        "resource.list",
			Description: "List resource files under a directory, optionally filtered by type.",
			LegacyAlias: "list_resources",
			Visibility:  wide,
			Backend:     channel.KindHeadless,
			Method:      "resource.list",
			InputSchema: objectSchema(map[string]any{
				"dir":  str("res:// directory to scan."),
				"type": str("Optional resource class filter."),
			}, "dir"),
			Keywords: []string{"resource", "list", "find", "directory"},
		},

		// Tilemap family. Painting is a bulk operation: each cell succeeds or
		// fails on its own.
		{
			Name:        "tilemap.paint",
			Description: "Paint a batch of tilemap cells; results report per-cell outcomes.",
			LegacyAlias: "paint_tilemap_cells",
			Visibility:  wide,
			Backend:     channel.KindHeadless,
			Method:      "tilemap.paint",
			Bulk:        true,
			InputSchema: objectSchema(map[string]any{
				"scene": str("res:// path of the scene holding the tilemap."),
				"node":  str("Node path of the TileMapLayer."),
				"cells": map[string]any{
					"type":        "array",
					"description": "Cells to paint: {x, y, source_id, atlas_x, atlas_y}.",
					"items":       map[string]any{"type": "object"},
				},
			}, "scene", "node", "cells"),
			Keywords: []string{"tilemap", "paint", "cells", "tiles", "batch"},
		},
		{
			Name:        "tilemap.clear",
			Description: "Clear a rectangular region of a tilemap layer.",
			LegacyAlias: "clear_tilemap_region",
			Visibility:  wide,
			Backend:     channel.KindHeadless,
			Method:      "tilemap.clear",
			InputSchema: objectSchema(map[string]any{
				"scene": str("res:// path of the scene holding the tilemap."),
				"node":  str("Node path of the TileMapLayer."),
				"x":     integer("Region origin column."),
				"y":     integer("Region origin row."),
				"w":     integer("Region width in cells."),
				"h":     integer("Region height in cells."),
			}, "scene", "node", "x", "y", "w", "h"),
			Keywords: []string{"tilemap", "clear", "erase", "region"},
		},

		// Asset family. Import is bulk for the same reason painting is.
		{
			Name:        "asset.import",
			Description: "Trigger reimport for a batch of asset files; results are per-file.",
			LegacyAlias: "import_assets",
			Visibility:  wide,
			Backend:     channel.KindHeadless,
			Method:      "asset.import",
			Bulk:        true,
			InputSchema: objectSchema(map[string]any{
				"paths": map[string]any{
					"type":        "array",
					"description": "res:// paths of the assets to reimport.",
					"items":       map[string]any{"type": "string"},
				},
			}, "paths"),
			Keywords: []string{"asset", "import", "reimport", "texture"},
		},
		{
			Name:        "asset.list",
			Description: "List imported assets under a directory with their types.",
			LegacyAlias: "list_assets",
			Visibility:  wide,
			Backend:     channel.KindHeadless,
			Method:      "asset.list",
			InputSchema: objectSchema(map[string]any{
				"dir": str("res:// directory to scan."),
			}, "dir"),
			Keywords: []string{"asset", "list", "files"},
		},

		// Runtime family: the live editor session over the addon socket.
		{
			Name:        "runtime.inspect_tree",
			Description: "Inspect the live scene tree of the running editor session.",
			LegacyAlias: "inspect_runtime_tree",
			Visibility:  core,
			Backend:     channel.KindEditor,
			Method:      "runtime.inspect_tree",
			InputSchema: objectSchema(map[string]any{
				"root": str("Optional node path to start from; defaults to the tree root."),
			}),
			Keywords: []string{"runtime", "inspect", "tree", "live", "editor"},
		},
		{
			Name:        "runtime.screenshot",
			Description: "Capture a screenshot of the running editor viewport.",
			LegacyAlias: "capture_screenshot",
			Visibility:  wide,
			Backend:     channel.KindEditor,
			Method:      "runtime.screenshot",
			InputSchema: objectSchema(map[string]any{
				"path": str("Destination file path for the PNG."),
			}, "path"),
			Keywords: []string{"runtime", "screenshot", "viewport", "capture"},
		},
		{
			Name:        "runtime.eval",
			Description: "Evaluate an expression in the running editor session.",
			LegacyAlias: "evaluate_expression",
			Visibility:  wide,
			Backend:     channel.KindEditor,
			Method:      "runtime.eval",
			InputSchema: objectSchema(map[string]any{
				"expression": str("Expression to evaluate."),
				"node":       str("Optional node path providing the evaluation context."),
			}, "expression"),
			Keywords: []string{"runtime", "evaluate", "expression", "repl"},
		},

		// Debug family: the adapter session for a running game.
		{
			Name:        "debug.set_breakpoint",
			Description: "Set or clear a breakpoint in a script.",
			LegacyAlias: "set_breakpoint",
			Visibility:  wide,
			Backend:     channel.KindDebug,
			Method:      "setBreakpoints",
			InputSchema: objectSchema(map[string]any{
				"path":    str("res:// path of the script."),
				"line":    integer("One-based line for the breakpoint."),
				"enabled": boolean("False clears the breakpoint."),
			}, "path", "line"),
			Keywords: []string{"debug", "breakpoint", "break", "line"},
		},
		{
			Name:        "debug.continue",
			Description: "Resume execution of the paused debuggee.",
			LegacyAlias: "continue_execution",
			Visibility:  wide,
			Backend:     channel.KindDebug,
			Method:      "continue",
			InputSchema: objectSchema(map[string]any{}),
			Keywords:    []string{"debug", "continue", "resume"},
		},
		{
			Name:        "debug.stack",
			Description: "Report the stack frames of the paused debuggee.",
			LegacyAlias: "get_stack_frames",
			Visibility:  wide,
			Backend:     channel.KindDebug,
			Method:      "stackTrace",
			InputSchema: objectSchema(map[string]any{
				"thread": integer("Thread id; omit for the main thread."),
			}),
			Keywords: []string{"debug", "stack", "frames", "trace"},
		},
		{
			Name:        "debug.variables",
			Description: "List the variables of a stack frame scope.",
			LegacyAlias: "get_frame_variables",
			Visibility:  wide,
			Backend:     channel.KindDebug,
			Method:      "variables",
			InputSchema: objectSchema(map[string]any{
				"frame": integer("Stack frame id from debug.stack."),
			}, "frame"),
			Keywords: []string{"debug", "variables", "scope", "locals"},
		},
	}
}
