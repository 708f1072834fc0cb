package catalog_test

import (
	"context"
	"fmt"
	"log"

	"github.com/rs/zerolog"

	"github.com/opsforge/opsforge/pkg/catalog"
)

// ExampleNewRegistry demonstrates creating a registry and looking up a
// built-in tool.
func ExampleNewRegistry() {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	registry := catalog.NewRegistry(nil, nil, nil, logger)

	def, ok := registry.Get("asset_query")
	if !ok {
		log.Fatal("asset_query not registered")
	}

	fmt.Printf("%s (source=%s, category=%s)\n", def.Name, def.Source, def.Category)
	// Output: asset_query (source=local, category=inventory)
}

// ExampleRegistry_Reload demonstrates a full catalog rebuild.
func ExampleRegistry_Reload() {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	registry := catalog.NewRegistry(nil, nil, nil, logger)

	report, err := registry.Reload(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("builtins=%d skipped=%d missing=%d\n",
		report.Builtins, report.SkippedFiles, len(report.MissingRequired))
	// Output: builtins=10 skipped=0 missing=0
}

// ExampleRegistry_List demonstrates filtered listing.
func ExampleRegistry_List() {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	registry := catalog.NewRegistry(nil, nil, nil, logger)

	for _, def := range registry.List("", catalog.CategoryInventory) {
		fmt.Println(def.Name)
	}
	// Output:
	// asset_count
	// asset_query
	// resolve_asset
}
