// Package config loads and validates the lattice-gateway configuration.
//
// Configuration is a single YAML file with ${VAR} environment expansion:
//
//	server:
//	  http_addr: ":8080"
//	upstream:
//	  base_url: https://api.example.com
//	  token: ${LATTICE_API_TOKEN}
//	  timeout: 30s
//	policy:
//	  disable_writes: true
//	registry:
//	  definitions: /etc/lattice/services.yaml
//	database:
//	  path: /var/lib/lattice/audit.db
//	logging:
//	  level: info
//	  format: json
//
// Load is called exactly once at startup; the resulting Config is immutable
// and handed to components via dependency injection. The upstream credential
// and policy flags live here so no code path reads the environment at
// request time.
package config
