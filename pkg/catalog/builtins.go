package catalog

// BuiltinTools returns the tool set compiled into the binary. Every reload
// starts from these; catalog files may override them by name, which is
// logged because the winner's source is no longer local.
func BuiltinTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "asset_query",
			DisplayName: "Asset Query",
			Description: "Search the asset inventory by OS, hostname, IP address, status or environment.",
			Category:    CategoryInventory,
			Platform:    PlatformAll,
			Source:      SourceLocal,
			Parameters: []ToolParameter{
				{Name: "os", Type: "string", Description: "OS family or family plus version text"},
				{Name: "hostname", Type: "string", Description: "Hostname substring, case-insensitive"},
				{Name: "ip_address", Type: "string", Description: "Exact IP address"},
				{Name: "status", Type: "string", Description: "Asset status"},
				{Name: "environment", Type: "string", Description: "Deployment environment"},
				{Name: "limit", Type: "int", Description: "Maximum results", Default: 100},
			},
		},
		{
			Name:        "asset_count",
			DisplayName: "Asset Count",
			Description: "Count inventory assets matching a filter.",
			Category:    CategoryInventory,
			Platform:    PlatformAll,
			Source:      SourceLocal,
			Parameters: []ToolParameter{
				{Name: "os", Type: "string", Description: "OS family or family plus version text"},
				{Name: "hostname", Type: "string", Description: "Hostname substring, case-insensitive"},
				{Name: "ip_address", Type: "string", Description: "Exact IP address"},
				{Name: "status", Type: "string", Description: "Asset status"},
				{Name: "environment", Type: "string", Description: "Deployment environment"},
			},
		},
		{
			Name:        "resolve_asset",
			DisplayName: "Resolve Asset",
			Description: "Resolve an identifier to a connection profile with service bindings and credential references.",
			Category:    CategoryInventory,
			Platform:    PlatformAll,
			Source:      SourceLocal,
			Parameters: []ToolParameter{
				{Name: "identifier", Type: "string", Description: "IP address, hostname or short name", Required: true},
				{Name: "asset_id", Type: "string", Description: "Explicit asset ID to disambiguate"},
			},
		},
		{
			Name:           "execute_command",
			DisplayName:    "Execute Command",
			Description:    "Run a shell command on a target host.",
			Category:       CategoryOperations,
			Platform:       PlatformAll,
			Source:         SourceLocal,
			Service:        "executor",
			Endpoint:       "/api/v1/commands/execute",
			TimeoutSeconds: 300,
			Parameters: []ToolParameter{
				{Name: "command", Type: "string", Description: "Command line to run", Required: true},
				{Name: "target_host", Type: "string", Description: "Host to run on", Required: true},
				{Name: "timeout_seconds", Type: "int", Description: "Command timeout", Default: 60},
			},
		},
		{
			Name:           "restart_service",
			DisplayName:    "Restart Service",
			Description:    "Restart a system service on a target host.",
			Category:       CategoryOperations,
			Platform:       PlatformAll,
			Source:         SourceLocal,
			Service:        "executor",
			Endpoint:       "/api/v1/services/restart",
			TimeoutSeconds: 120,
			Parameters: []ToolParameter{
				{Name: "service", Type: "string", Description: "Service name", Required: true},
				{Name: "target_host", Type: "string", Description: "Host the service runs on", Required: true},
			},
		},
		{
			Name:           "check_service_status",
			DisplayName:    "Check Service Status",
			Description:    "Query the status of a system service on a target host.",
			Category:       CategoryOperations,
			Platform:       PlatformAll,
			Source:         SourceLocal,
			Service:        "executor",
			Endpoint:       "/api/v1/services/status",
			TimeoutSeconds: 60,
			Parameters: []ToolParameter{
				{Name: "service", Type: "string", Description: "Service name", Required: true},
				{Name: "target_host", Type: "string", Description: "Host the service runs on", Required: true},
			},
		},
		{
			Name:           "ping_host",
			DisplayName:    "Ping Host",
			Description:    "Check network reachability of a target host.",
			Category:       CategoryOperations,
			Platform:       PlatformNetwork,
			Source:         SourceLocal,
			Service:        "netops",
			Endpoint:       "/api/v1/ping",
			TimeoutSeconds: 30,
			Parameters: []ToolParameter{
				{Name: "target_host", Type: "string", Description: "Host to ping", Required: true},
				{Name: "count", Type: "int", Description: "Probe count", Default: 4},
			},
		},
		{
			Name:           "get_system_info",
			DisplayName:    "Get System Info",
			Description:    "Collect OS, hardware and uptime details from a target host.",
			Category:       CategoryOperations,
			Platform:       PlatformAll,
			Source:         SourceLocal,
			Service:        "executor",
			Endpoint:       "/api/v1/system/info",
			TimeoutSeconds: 60,
			Parameters: []ToolParameter{
				{Name: "target_host", Type: "string", Description: "Host to inspect", Required: true},
			},
		},
		{
			Name:           "install_package",
			DisplayName:    "Install Package",
			Description:    "Install a software package on a target host.",
			Category:       CategoryOperations,
			Platform:       PlatformAll,
			Source:         SourceLocal,
			Service:        "executor",
			Endpoint:       "/api/v1/packages/install",
			TimeoutSeconds: 600,
			Parameters: []ToolParameter{
				{Name: "package", Type: "string", Description: "Package name", Required: true},
				{Name: "version", Type: "string", Description: "Version constraint"},
				{Name: "target_host", Type: "string", Description: "Host to install on", Required: true},
			},
		},
		{
			Name:           "run_script",
			DisplayName:    "Run Script",
			Description:    "Run a script on a target host with a chosen interpreter.",
			Category:       CategoryOperations,
			Platform:       PlatformAll,
			Source:         SourceLocal,
			Service:        "executor",
			Endpoint:       "/api/v1/scripts/run",
			TimeoutSeconds: 600,
			Parameters: []ToolParameter{
				{Name: "script", Type: "string", Description: "Script body", Required: true},
				{Name: "interpreter", Type: "string", Description: "Interpreter to use", Default: "bash"},
				{Name: "target_host", Type: "string", Description: "Host to run on", Required: true},
			},
		},
	}
}

// RequiredTools is the fixed set of tool names every reload must keep
// available. Missing names are reported and logged but never fail a reload;
// availability wins over strict validation.
func RequiredTools() []string {
	return []string{
		"asset_query",
		"asset_count",
		"resolve_asset",
		"execute_command",
		"restart_service",
		"ping_host",
	}
}
