package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opsforge/opsforge/pkg/config"
	"github.com/opsforge/opsforge/pkg/inventory"
	"github.com/opsforge/opsforge/pkg/stores"
)

func newAssetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Asset inventory operations",
		Long: `Query and maintain the asset inventory.

The inventory backs the built-in asset tools (asset_query, asset_count,
resolve_asset) that plans use to discover targets.`,
	}

	cmd.AddCommand(newAssetsSearchCommand())
	cmd.AddCommand(newAssetsCountCommand())
	cmd.AddCommand(newAssetsResolveCommand())
	cmd.AddCommand(newAssetsImportCommand())

	return cmd
}

// openAssetStore opens the store for the asset commands.
func openAssetStore(ctx context.Context) (*stores.SQLiteStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return openStore(ctx, cfg)
}

// addAssetFilterFlags registers the shared filter flags on a command.
func addAssetFilterFlags(cmd *cobra.Command, filter *inventory.Filter) {
	cmd.Flags().StringVar(&filter.OS, "os", "", "OS family or free text (e.g. linux, windows 2019)")
	cmd.Flags().StringVar(&filter.Hostname, "hostname", "", "hostname substring")
	cmd.Flags().StringVar(&filter.IPAddress, "ip", "", "exact IP address")
	cmd.Flags().StringVar(&filter.Status, "status", "", "asset status (e.g. active)")
	cmd.Flags().StringVar(&filter.Environment, "environment", "", "environment (e.g. production)")
}

func newAssetsSearchCommand() *cobra.Command {
	var filter inventory.Filter
	var limit int

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the inventory",
		Example: `  # All production linux assets
  forge assets search --os linux --environment production

  # Assets matching a hostname fragment
  forge assets search --hostname web- --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openAssetStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			resolver := inventory.NewResolver(store, log.Logger)
			assets, err := resolver.SearchAssets(ctx, filter, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(assets)
			}

			fmt.Printf("%-20s %-30s %-16s %-16s %-12s %s\n", "ID", "HOSTNAME", "IP", "OS", "ENV", "STATUS")
			for _, asset := range assets {
				fmt.Printf("%-20s %-30s %-16s %-16s %-12s %s\n",
					asset.ID, asset.Hostname, asset.IPAddress, asset.OS, asset.Environment, asset.Status)
			}
			fmt.Printf("\n%d assets\n", len(assets))
			return nil
		},
	}

	addAssetFilterFlags(cmd, &filter)
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum results")

	return cmd
}

func newAssetsCountCommand() *cobra.Command {
	var filter inventory.Filter

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count matching assets",
		Example: `  # Count the windows fleet
  forge assets count --os windows`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openAssetStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			resolver := inventory.NewResolver(store, log.Logger)
			count, err := resolver.CountAssets(ctx, filter)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(map[string]int{"count": count})
			}
			fmt.Println(count)
			return nil
		},
	}

	addAssetFilterFlags(cmd, &filter)

	return cmd
}

func newAssetsResolveCommand() *cobra.Command {
	var assetID string

	cmd := &cobra.Command{
		Use:   "resolve <identifier>",
		Short: "Resolve an identifier to a connection profile",
		Long: `Resolve an IP, hostname or short name to a connection profile.

Resolution tries an exact IP match first, then the full hostname, then
the hostname's short name. An identifier matching multiple assets is
ambiguous; rerun with --asset-id to pick one.

The exit code is non-zero when nothing matched or the identifier is
ambiguous.`,
		Example: `  # Resolve by hostname
  forge assets resolve web-01.example.com

  # Disambiguate by asset ID
  forge assets resolve web-01 --asset-id i-0abc123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openAssetStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			resolver := inventory.NewResolver(store, log.Logger)
			profile, err := resolver.ResolveConnectionProfile(ctx, args[0], assetID)
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := printJSON(profile); err != nil {
					return err
				}
			} else {
				printProfile(args[0], profile)
			}

			switch {
			case profile.Ambiguous:
				return fmt.Errorf("identifier %s is ambiguous (%d candidates)", args[0], len(profile.Candidates))
			case !profile.Found:
				return fmt.Errorf("no asset matched %s", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&assetID, "asset-id", "", "resolve a specific asset by ID")

	return cmd
}

func printProfile(identifier string, profile inventory.ConnectionProfile) {
	switch {
	case profile.Ambiguous:
		fmt.Printf("Identifier %s matched %d assets:\n", identifier, len(profile.Candidates))
		for _, candidate := range profile.Candidates {
			fmt.Printf("  %-20s %-30s %s\n", candidate.ID, candidate.Hostname, candidate.IPAddress)
		}
	case profile.Found:
		fmt.Printf("Asset:    %s (%s)\n", profile.Asset.Hostname, profile.Asset.ID)
		fmt.Printf("Target:   %s\n", profile.Target)
		for _, binding := range profile.Bindings {
			fmt.Printf("Binding:  %s:%d (%s)\n", binding.Protocol, binding.Port, binding.CredentialRef)
		}
	default:
		fmt.Printf("No asset matched %s\n", identifier)
	}
}

func newAssetsImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import assets from a YAML or JSON file",
		Long: `Import asset documents into the inventory.

Documents need an id or a hostname; re-imports with the same id update
in place. The whole file goes into one transaction, so an invalid
document aborts the import before anything is written.`,
		Example: `  # Import a fleet inventory
  forge assets import fleet.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openAssetStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			importer := inventory.NewImporter(store, log.Logger)
			count, err := importer.ImportFile(ctx, args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(map[string]int{"imported": count})
			}
			fmt.Printf("Imported %d assets\n", count)
			return nil
		},
	}

	return cmd
}
