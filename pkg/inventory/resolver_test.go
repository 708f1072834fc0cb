package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsforge/opsforge/pkg/stores"
)

func testStore(t *testing.T) *stores.SQLiteStore {
	t.Helper()

	store, err := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testResolver(t *testing.T) (*Resolver, *stores.SQLiteStore) {
	t.Helper()
	store := testStore(t)
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return NewResolver(store, logger), store
}

func seedAsset(t *testing.T, store *stores.SQLiteStore, asset *stores.Asset) {
	t.Helper()

	now := time.Now()
	if asset.Status == "" {
		asset.Status = "active"
	}
	if asset.Tags == "" {
		asset.Tags = "{}"
	}
	asset.CreatedAt = now
	asset.UpdatedAt = now
	if err := store.UpsertAsset(context.Background(), asset); err != nil {
		t.Fatalf("Failed to seed asset: %v", err)
	}
}

func TestNormalizeOSFamily(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"windows", FamilyWindows},
		{"Windows Server 2019", FamilyWindows},
		{"Microsoft Windows 11", FamilyWindows},
		{"linux", FamilyLinux},
		{"Ubuntu 22.04", FamilyLinux},
		{"Red Hat Enterprise Linux", FamilyLinux},
		{"RHEL", FamilyLinux},
		{"CentOS 7", FamilyLinux},
		{"Darwin", FamilyUnix},
		{"macOS 14", FamilyUnix},
		{"FreeBSD 13", FamilyUnix},
		{"AIX", FamilyUnix},
		{"Solaris 11", FamilyUnix},
		{"z/OS", "z/os"},
		{"  ", ""},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeOSFamily(tc.in); got != tc.want {
			t.Errorf("NormalizeOSFamily(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseOSFilter(t *testing.T) {
	cases := []struct {
		in          string
		wantFamily  string
		wantVersion string
	}{
		{"linux", FamilyLinux, ""},
		{"windows 2019", FamilyWindows, "2019"},
		{"Windows Server 2019", FamilyWindows, "server 2019"},
		{"ubuntu 22.04", FamilyLinux, "22.04"},
		{"red hat enterprise linux 8", FamilyLinux, "8"},
		{"esxi", "esxi", ""},
		{"", "", ""},
	}

	for _, tc := range cases {
		family, version := ParseOSFilter(tc.in)
		if family != tc.wantFamily || version != tc.wantVersion {
			t.Errorf("ParseOSFilter(%q) = (%q, %q), want (%q, %q)",
				tc.in, family, version, tc.wantFamily, tc.wantVersion)
		}
	}
}

func TestSearchAssets_CompoundOSFilter(t *testing.T) {
	resolver, store := testResolver(t)
	ctx := context.Background()

	seedAsset(t, store, &stores.Asset{
		ID: "w1", Hostname: "win-01", IPAddress: "10.0.0.1",
		OS: "windows", OSFamily: "windows", OSVersion: "Server 2019",
	})
	seedAsset(t, store, &stores.Asset{
		ID: "w2", Hostname: "win-02", IPAddress: "10.0.0.2",
		OS: "windows", OSFamily: "windows", OSVersion: "Server 2022",
	})

	assets, err := resolver.SearchAssets(ctx, Filter{OS: "windows 2019"}, 0)
	if err != nil {
		t.Fatalf("Failed to search assets: %v", err)
	}
	if len(assets) != 1 || assets[0].ID != "w1" {
		t.Fatalf("Expected only win-01 for 'windows 2019', got %d assets", len(assets))
	}

	assets, err = resolver.SearchAssets(ctx, Filter{OS: "windows"}, 0)
	if err != nil {
		t.Fatalf("Failed to search assets: %v", err)
	}
	if len(assets) != 2 {
		t.Errorf("Expected both windows assets, got %d", len(assets))
	}
}

func TestCountAssets(t *testing.T) {
	resolver, store := testResolver(t)
	ctx := context.Background()

	seedAsset(t, store, &stores.Asset{ID: "a1", Hostname: "web-01", Environment: "production", OS: "linux", OSFamily: "linux"})
	seedAsset(t, store, &stores.Asset{ID: "a2", Hostname: "web-02", Environment: "staging", OS: "linux", OSFamily: "linux"})
	seedAsset(t, store, &stores.Asset{ID: "a3", Hostname: "db-01", Environment: "production", OS: "linux", OSFamily: "linux"})

	count, err := resolver.CountAssets(ctx, Filter{Environment: "production"})
	if err != nil {
		t.Fatalf("Failed to count assets: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 production assets, got %d", count)
	}
}

func TestResolveConnectionProfile_ByIP(t *testing.T) {
	resolver, store := testResolver(t)
	ctx := context.Background()

	seedAsset(t, store, &stores.Asset{
		ID: "a1", Hostname: "web-01.prod.example.com", IPAddress: "10.0.0.5",
		OS: "linux", OSFamily: "linux",
	})

	profile, err := resolver.ResolveConnectionProfile(ctx, "10.0.0.5", "")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if !profile.Found || profile.Ambiguous {
		t.Fatalf("Expected unique match, got found=%v ambiguous=%v", profile.Found, profile.Ambiguous)
	}
	if profile.Asset.ID != "a1" {
		t.Errorf("Expected asset a1, got %s", profile.Asset.ID)
	}
	if profile.Target != "10.0.0.5" {
		t.Errorf("Expected target 10.0.0.5, got %s", profile.Target)
	}
}

func TestResolveConnectionProfile_HostnameCaseInsensitive(t *testing.T) {
	resolver, store := testResolver(t)
	ctx := context.Background()

	seedAsset(t, store, &stores.Asset{
		ID: "a1", Hostname: "Web-01.Prod.Example.com", IPAddress: "10.0.0.5",
		OS: "linux", OSFamily: "linux",
	})

	profile, err := resolver.ResolveConnectionProfile(ctx, "WEB-01.PROD.EXAMPLE.COM", "")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if !profile.Found {
		t.Fatal("Expected hostname match to be case-insensitive")
	}
	if profile.Asset.ID != "a1" {
		t.Errorf("Expected asset a1, got %s", profile.Asset.ID)
	}
}

func TestResolveConnectionProfile_ShortName(t *testing.T) {
	resolver, store := testResolver(t)
	ctx := context.Background()

	seedAsset(t, store, &stores.Asset{
		ID: "a1", Hostname: "web-01.prod.example.com", IPAddress: "10.0.0.5",
		OS: "linux", OSFamily: "linux",
	})

	profile, err := resolver.ResolveConnectionProfile(ctx, "web-01", "")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if !profile.Found {
		t.Fatal("Expected short name to match the first DNS label")
	}
	if profile.Asset.ID != "a1" {
		t.Errorf("Expected asset a1, got %s", profile.Asset.ID)
	}
}

func TestResolveConnectionProfile_AmbiguousShortName(t *testing.T) {
	resolver, store := testResolver(t)
	ctx := context.Background()

	seedAsset(t, store, &stores.Asset{
		ID: "a1", Hostname: "web-01.east.example.com", IPAddress: "10.1.0.5",
		OS: "linux", OSFamily: "linux",
	})
	seedAsset(t, store, &stores.Asset{
		ID: "a2", Hostname: "web-01.west.example.com", IPAddress: "10.2.0.5",
		OS: "linux", OSFamily: "linux",
	})

	profile, err := resolver.ResolveConnectionProfile(ctx, "web-01", "")
	if err != nil {
		t.Fatalf("Ambiguity must come back as data, not an error: %v", err)
	}
	if profile.Found {
		t.Error("Expected found=false for ambiguous match")
	}
	if !profile.Ambiguous {
		t.Fatal("Expected ambiguous=true")
	}
	if len(profile.Candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(profile.Candidates))
	}
	if len(profile.Bindings) != 0 {
		t.Errorf("Expected no bindings on an ambiguous profile, got %d", len(profile.Bindings))
	}
}

func TestResolveConnectionProfile_NotFound(t *testing.T) {
	resolver, _ := testResolver(t)

	profile, err := resolver.ResolveConnectionProfile(context.Background(), "ghost-99", "")
	if err != nil {
		t.Fatalf("A miss must come back as data, not an error: %v", err)
	}
	if profile.Found || profile.Ambiguous {
		t.Errorf("Expected empty profile, got found=%v ambiguous=%v", profile.Found, profile.Ambiguous)
	}
}

func TestResolveConnectionProfile_AssetIDSkipsTiers(t *testing.T) {
	resolver, store := testResolver(t)
	ctx := context.Background()

	seedAsset(t, store, &stores.Asset{
		ID: "a1", Hostname: "web-01.east.example.com", OS: "linux", OSFamily: "linux",
	})
	seedAsset(t, store, &stores.Asset{
		ID: "a2", Hostname: "web-01.west.example.com", OS: "linux", OSFamily: "linux",
	})

	profile, err := resolver.ResolveConnectionProfile(ctx, "web-01", "a2")
	if err != nil {
		t.Fatalf("Failed to resolve by asset ID: %v", err)
	}
	if !profile.Found || profile.Asset.ID != "a2" {
		t.Fatalf("Expected direct resolution to a2, got %+v", profile)
	}

	if _, err := resolver.ResolveConnectionProfile(ctx, "", "missing-id"); err == nil {
		t.Error("Expected an error for an unknown asset ID")
	}
}

func TestResolveConnectionProfile_IPTierWins(t *testing.T) {
	resolver, store := testResolver(t)
	ctx := context.Background()

	seedAsset(t, store, &stores.Asset{
		ID: "a1", Hostname: "db-01.example.com", IPAddress: "10.0.0.9",
		OS: "linux", OSFamily: "linux",
	})
	// Hostname column holding the same literal address must lose to the
	// IP tier.
	seedAsset(t, store, &stores.Asset{
		ID: "a2", Hostname: "10.0.0.9", IPAddress: "",
		OS: "linux", OSFamily: "linux",
	})

	profile, err := resolver.ResolveConnectionProfile(ctx, "10.0.0.9", "")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if !profile.Found || profile.Asset.ID != "a1" {
		t.Fatalf("Expected the IP tier to win with a1, got %+v", profile.Asset)
	}
}

func TestResolveConnectionProfile_WindowsBindings(t *testing.T) {
	resolver, store := testResolver(t)
	ctx := context.Background()

	seedAsset(t, store, &stores.Asset{
		ID: "w1", Hostname: "Win-01.Corp.Example.com", IPAddress: "10.0.0.7",
		OS: "Windows Server 2019", OSFamily: "windows", OSVersion: "Server 2019",
	})

	profile, err := resolver.ResolveConnectionProfile(ctx, "10.0.0.7", "")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if len(profile.Bindings) != 2 {
		t.Fatalf("Expected 2 bindings for windows, got %d", len(profile.Bindings))
	}

	winrm, rdp := profile.Bindings[0], profile.Bindings[1]
	if winrm.Protocol != ProtocolWinRM || winrm.Port != 5985 {
		t.Errorf("Expected winrm on 5985, got %s on %d", winrm.Protocol, winrm.Port)
	}
	if rdp.Protocol != ProtocolRDP || rdp.Port != 3389 {
		t.Errorf("Expected rdp on 3389, got %s on %d", rdp.Protocol, rdp.Port)
	}
	if winrm.CredentialRef != "secret://secrets.winrm/win-01.corp.example.com" {
		t.Errorf("Unexpected credential ref %q", winrm.CredentialRef)
	}
	if rdp.CredentialRef != "secret://secrets.rdp/win-01.corp.example.com" {
		t.Errorf("Unexpected credential ref %q", rdp.CredentialRef)
	}
}

func TestResolveConnectionProfile_UnixBindings(t *testing.T) {
	resolver, store := testResolver(t)
	ctx := context.Background()

	seedAsset(t, store, &stores.Asset{
		ID: "a1", Hostname: "Web-01.Prod.Example.com", IPAddress: "10.0.0.5",
		OS: "Ubuntu 22.04", OSFamily: "linux",
	})

	profile, err := resolver.ResolveConnectionProfile(ctx, "web-01", "")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if len(profile.Bindings) != 1 {
		t.Fatalf("Expected 1 binding, got %d", len(profile.Bindings))
	}

	ssh := profile.Bindings[0]
	if ssh.Protocol != ProtocolSSH || ssh.Port != 22 {
		t.Errorf("Expected ssh on 22, got %s on %d", ssh.Protocol, ssh.Port)
	}
	if ssh.CredentialRef != "secret://secrets.ssh/web-01.prod.example.com" {
		t.Errorf("Unexpected credential ref %q", ssh.CredentialRef)
	}
}

func TestResolveConnectionProfile_NoHostnameUsesIP(t *testing.T) {
	resolver, store := testResolver(t)
	ctx := context.Background()

	seedAsset(t, store, &stores.Asset{
		ID: "bare", Hostname: "", IPAddress: "192.168.1.10",
		OS: "linux", OSFamily: "linux",
	})

	profile, err := resolver.ResolveConnectionProfile(ctx, "192.168.1.10", "")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if !profile.Found {
		t.Fatal("Expected the asset to resolve by IP")
	}
	if profile.Bindings[0].CredentialRef != "secret://secrets.ssh/192.168.1.10" {
		t.Errorf("Expected the IP as canonical host, got %q", profile.Bindings[0].CredentialRef)
	}
}
