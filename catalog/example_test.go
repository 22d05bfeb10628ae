package catalog_test

import (
	"fmt"

	"github.com/HaD0Yun/godot-mcp/catalog"
	"github.com/HaD0Yun/godot-mcp/channel"
	"github.com/HaD0Yun/godot-mcp/registry"
)

func ExampleIndex_Search() {
	reg, err := registry.New([]registry.Definition{
		{
			Name:        "tilemap.paint",
			Description: "Paint cells on a tilemap layer.",
			LegacyAlias: "paint_tilemap_cells",
			Visibility:  registry.Visibility{Full: true},
			Backend:     channel.KindHeadless,
			Keywords:    []string{"tilemap", "paint", "cells"},
		},
		{
			Name:        "scene.save",
			Description: "Save the current scene to disk.",
			Visibility:  registry.Visibility{Compact: true, Full: true},
			Backend:     channel.KindHeadless,
			Keywords:    []string{"scene", "save"},
		},
	})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	idx := catalog.New(reg)
	for _, m := range idx.Search("paint tilemap", registry.ProfileCompact) {
		fmt.Printf("%s visible=%v\n", m.CanonicalName, m.VisibleInCurrentProfile)
	}
	// Output:
	// tilemap.paint visible=false
}
