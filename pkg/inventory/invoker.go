package inventory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/opsforge/opsforge/pkg/catalog"
	"github.com/opsforge/opsforge/pkg/engine"
	"github.com/opsforge/opsforge/pkg/stores"
)

// Invoker serves the built-in inventory tools locally against the asset
// store. The engine's dispatcher routes inventory-category steps here;
// everything else goes to downstream services.
type Invoker struct {
	resolver *Resolver
	logger   zerolog.Logger
}

// NewInvoker creates an invoker over the given resolver.
func NewInvoker(resolver *Resolver, logger zerolog.Logger) *Invoker {
	return &Invoker{
		resolver: resolver,
		logger:   logger.With().Str("component", "inventory").Logger(),
	}
}

// Invoke implements the engine's tool invoker for inventory tools.
func (iv *Invoker) Invoke(ctx context.Context, step engine.ExpandedStep, def catalog.ToolDefinition) (map[string]interface{}, error) {
	switch def.Name {
	case "asset_query":
		return iv.assetQuery(ctx, step.Inputs)
	case "asset_count":
		return iv.assetCount(ctx, step.Inputs)
	case "resolve_asset":
		return iv.resolveAsset(ctx, step.Inputs)
	default:
		return nil, engine.NewValidationError(
			fmt.Sprintf("no local handler for inventory tool %s", def.Name), nil).
			WithResource(def.Name).
			WithOperation("invoke")
	}
}

func (iv *Invoker) assetQuery(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
	limit := intInput(inputs, "limit", 100)
	assets, err := iv.resolver.SearchAssets(ctx, filterFromInputs(inputs), limit)
	if err != nil {
		return nil, err
	}

	items := make([]interface{}, 0, len(assets))
	for _, asset := range assets {
		items = append(items, assetMap(asset))
	}

	iv.logger.Debug().Int("count", len(items)).Msg("Asset query served")
	return map[string]interface{}{
		"assets": items,
		"count":  len(items),
	}, nil
}

func (iv *Invoker) assetCount(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
	count, err := iv.resolver.CountAssets(ctx, filterFromInputs(inputs))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": count}, nil
}

func (iv *Invoker) resolveAsset(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
	identifier := stringInput(inputs, "identifier")
	assetID := stringInput(inputs, "asset_id")
	if identifier == "" && assetID == "" {
		return nil, engine.NewValidationError("resolve_asset requires an identifier", nil).
			WithResource("resolve_asset").
			WithOperation("invoke")
	}

	profile, err := iv.resolver.ResolveConnectionProfile(ctx, identifier, assetID)
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{
		"found":     profile.Found,
		"ambiguous": profile.Ambiguous,
	}
	if profile.Found {
		out["profile"] = profileMap(profile)
	}
	if profile.Ambiguous {
		candidates := make([]interface{}, 0, len(profile.Candidates))
		for _, candidate := range profile.Candidates {
			candidates = append(candidates, assetMap(candidate))
		}
		out["candidates"] = candidates
	}
	return out, nil
}

// filterFromInputs reads the flat filter parameters shared by the
// inventory query tools.
func filterFromInputs(inputs map[string]interface{}) Filter {
	return Filter{
		OS:          stringInput(inputs, "os"),
		Hostname:    stringInput(inputs, "hostname"),
		IPAddress:   stringInput(inputs, "ip_address"),
		Status:      stringInput(inputs, "status"),
		Environment: stringInput(inputs, "environment"),
	}
}

// assetMap is the step-output form of an asset. The keys feed template
// resolution and fan-out item binding downstream.
func assetMap(asset *stores.Asset) map[string]interface{} {
	return map[string]interface{}{
		"id":          asset.ID,
		"hostname":    asset.Hostname,
		"ip_address":  asset.IPAddress,
		"os":          asset.OS,
		"os_version":  asset.OSVersion,
		"status":      asset.Status,
		"environment": asset.Environment,
	}
}

func profileMap(profile ConnectionProfile) map[string]interface{} {
	bindings := make([]interface{}, 0, len(profile.Bindings))
	for _, binding := range profile.Bindings {
		bindings = append(bindings, map[string]interface{}{
			"protocol":      binding.Protocol,
			"port":          binding.Port,
			"credentialRef": binding.CredentialRef,
		})
	}
	return map[string]interface{}{
		"asset":    assetMap(profile.Asset),
		"target":   profile.Target,
		"bindings": bindings,
	}
}

func stringInput(inputs map[string]interface{}, key string) string {
	if value, ok := inputs[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func intInput(inputs map[string]interface{}, key string, fallback int) int {
	switch value := inputs[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	case string:
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
