package inventory

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/opsforge/opsforge/pkg/stores"
)

// Connection protocols and their default ports.
const (
	ProtocolSSH   = "ssh"
	ProtocolWinRM = "winrm"
	ProtocolRDP   = "rdp"

	portSSH   = 22
	portWinRM = 5985
	portRDP   = 3389
)

// AssetStore is the subset of the store the resolver reads from.
type AssetStore interface {
	GetAsset(ctx context.Context, id string) (*stores.Asset, error)
	FindAssetsByIP(ctx context.Context, ip string) ([]*stores.Asset, error)
	FindAssetsByHostname(ctx context.Context, hostname string) ([]*stores.Asset, error)
	FindAssetsByShortName(ctx context.Context, name string) ([]*stores.Asset, error)
	SearchAssets(ctx context.Context, filter stores.AssetFilter) ([]*stores.Asset, error)
	CountAssets(ctx context.Context, filter stores.AssetFilter) (int, error)
}

// Filter narrows asset queries. Empty fields match everything. OS may name
// a family, free text, or a family plus version text ("windows 2019").
type Filter struct {
	// OS is matched against the normalized family and the free-text os
	// and os_version columns.
	OS string

	// Hostname is a case-insensitive substring match.
	Hostname string

	// IPAddress is an exact match.
	IPAddress string

	// Status is an exact, case-insensitive match.
	Status string

	// Environment is an exact, case-insensitive match.
	Environment string
}

// ServiceBinding describes one way to reach an asset. CredentialRef is an
// opaque pointer a separate secret store resolves; the inventory never
// holds secret material.
type ServiceBinding struct {
	Protocol      string `json:"protocol"`
	Port          int    `json:"port"`
	CredentialRef string `json:"credentialRef"`
}

// ConnectionProfile is the outcome of resolving an identifier. Zero
// matches and ambiguous matches are data, not errors: Found and Ambiguous
// tell the caller which case it got.
type ConnectionProfile struct {
	// Found reports whether the identifier resolved to exactly one asset.
	Found bool `json:"found"`

	// Ambiguous reports that multiple assets matched at the same
	// priority tier. Candidates carries them; the caller disambiguates
	// by asset ID.
	Ambiguous bool `json:"ambiguous"`

	// Asset is the resolved asset when Found.
	Asset *stores.Asset `json:"asset,omitempty"`

	// Candidates lists the equally ranked matches when Ambiguous.
	Candidates []*stores.Asset `json:"candidates,omitempty"`

	// Target is the address to connect to: the IP when known, else the
	// hostname.
	Target string `json:"target,omitempty"`

	// Bindings are the protocol endpoints appropriate for the asset's
	// OS family.
	Bindings []ServiceBinding `json:"bindings,omitempty"`
}

// Resolver serves asset queries and resolves identifiers to connection
// profiles.
type Resolver struct {
	store  AssetStore
	logger zerolog.Logger
}

// NewResolver creates a resolver over the given asset store.
func NewResolver(store AssetStore, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.With().Str("component", "inventory").Logger(),
	}
}

// SearchAssets returns assets matching the filter. A non-positive limit
// applies the default of 100.
func (r *Resolver) SearchAssets(ctx context.Context, filter Filter, limit int) ([]*stores.Asset, error) {
	assets, err := r.store.SearchAssets(ctx, storeFilter(filter, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}
	return assets, nil
}

// CountAssets counts assets matching the filter.
func (r *Resolver) CountAssets(ctx context.Context, filter Filter) (int, error) {
	count, err := r.store.CountAssets(ctx, storeFilter(filter, 0))
	if err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return count, nil
}

// ResolveConnectionProfile resolves an identifier to an asset with its
// service bindings. Matching runs in priority tiers, first tier with hits
// wins: exact IP when the identifier parses as one, then full hostname,
// then the first DNS label, all case-insensitive. A non-empty assetID
// skips the tiers and looks the asset up directly; an unknown assetID is
// an error because the caller named a specific record.
func (r *Resolver) ResolveConnectionProfile(ctx context.Context, identifier, assetID string) (ConnectionProfile, error) {
	if assetID != "" {
		asset, err := r.store.GetAsset(ctx, assetID)
		if err != nil {
			return ConnectionProfile{}, fmt.Errorf("failed to resolve asset: %w", err)
		}
		return r.profileFor(asset), nil
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ConnectionProfile{}, fmt.Errorf("identifier is required")
	}

	tiers := make([]func() ([]*stores.Asset, error), 0, 3)
	if net.ParseIP(identifier) != nil {
		tiers = append(tiers, func() ([]*stores.Asset, error) {
			return r.store.FindAssetsByIP(ctx, identifier)
		})
	}
	tiers = append(tiers,
		func() ([]*stores.Asset, error) { return r.store.FindAssetsByHostname(ctx, identifier) },
		func() ([]*stores.Asset, error) { return r.store.FindAssetsByShortName(ctx, identifier) },
	)

	for _, lookup := range tiers {
		matches, err := lookup()
		if err != nil {
			return ConnectionProfile{}, fmt.Errorf("failed to look up asset %s: %w", identifier, err)
		}
		switch len(matches) {
		case 0:
			continue
		case 1:
			return r.profileFor(matches[0]), nil
		default:
			r.logger.Warn().
				Str("identifier", identifier).
				Int("candidates", len(matches)).
				Msg("Identifier matched multiple assets")
			return ConnectionProfile{Ambiguous: true, Candidates: matches}, nil
		}
	}

	r.logger.Debug().Str("identifier", identifier).Msg("No asset matched identifier")
	return ConnectionProfile{}, nil
}

func (r *Resolver) profileFor(asset *stores.Asset) ConnectionProfile {
	target := asset.IPAddress
	if target == "" {
		target = asset.Hostname
	}
	return ConnectionProfile{
		Found:    true,
		Asset:    asset,
		Target:   target,
		Bindings: bindingsFor(asset),
	}
}

// bindingsFor builds the service bindings for an asset by OS family.
// Windows gets remote management and desktop endpoints; everything else
// gets a shell endpoint.
func bindingsFor(asset *stores.Asset) []ServiceBinding {
	host := canonicalHost(asset)
	if osFamilyOf(asset) == FamilyWindows {
		return []ServiceBinding{
			{Protocol: ProtocolWinRM, Port: portWinRM, CredentialRef: credentialRef(ProtocolWinRM, host)},
			{Protocol: ProtocolRDP, Port: portRDP, CredentialRef: credentialRef(ProtocolRDP, host)},
		}
	}
	return []ServiceBinding{
		{Protocol: ProtocolSSH, Port: portSSH, CredentialRef: credentialRef(ProtocolSSH, host)},
	}
}

func osFamilyOf(asset *stores.Asset) string {
	if asset.OSFamily != "" {
		return asset.OSFamily
	}
	return NormalizeOSFamily(asset.OS)
}

// canonicalHost is the lowercased hostname, or the IP when no hostname is
// stored.
func canonicalHost(asset *stores.Asset) string {
	if asset.Hostname != "" {
		return strings.ToLower(asset.Hostname)
	}
	return asset.IPAddress
}

func credentialRef(protocol, host string) string {
	return fmt.Sprintf("secret://secrets.%s/%s", protocol, host)
}

// storeFilter translates the tool-level filter into store query terms.
func storeFilter(filter Filter, limit int) stores.AssetFilter {
	out := stores.AssetFilter{Limit: limit}
	if filter.OS != "" {
		family, version := ParseOSFilter(filter.OS)
		out.OS = &family
		if version != "" {
			out.OSVersion = &version
		}
	}
	if filter.Hostname != "" {
		hostname := filter.Hostname
		out.Hostname = &hostname
	}
	if filter.IPAddress != "" {
		ip := filter.IPAddress
		out.IP = &ip
	}
	if filter.Status != "" {
		status := filter.Status
		out.Status = &status
	}
	if filter.Environment != "" {
		environment := filter.Environment
		out.Environment = &environment
	}
	return out
}
