// Package inventory resolves automation targets against the asset store.
//
// # Queries
//
// SearchAssets and CountAssets translate the flat filter set of the
// built-in inventory tools (OS, hostname substring, exact IP, status,
// environment) into store queries. OS filters are split into a normalized
// family and optional version text, so "windows 2019" matches Windows
// assets whose version mentions 2019 while "ubuntu" still reaches assets
// stored with free-form OS strings.
//
// # Connection Profiles
//
// ResolveConnectionProfile maps an identifier to an asset in priority
// tiers: exact IP, full hostname, then short name (first DNS label). Zero
// or multiple matches come back as data on the profile, never as errors;
// an ambiguous profile carries the candidate list and callers
// disambiguate with an explicit asset ID. A resolved profile holds
// OS-appropriate service bindings (winrm and rdp for Windows, ssh for
// everything else), each with an opaque credential reference in the form
//
//	secret://secrets.<protocol>/<canonical-host>
//
// that a separate secret store resolves. This package never holds secret
// material.
//
// # Import
//
// Importer loads asset documents from YAML or JSON files, applying the
// same OS family normalization the query layer depends on. The Invoker
// serves the built-in inventory tools for the engine's dispatcher.
package inventory
