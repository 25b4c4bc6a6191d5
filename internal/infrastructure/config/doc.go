// Package config handles loading and validating hcbridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (HCBRIDGE_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Appliance PSKs, MQTT passwords and the JWT secret should be set via
//     environment variables or a file with restricted permissions (0600)
//   - An empty security.jwt.secret leaves the REST API unauthenticated
//
// Usage:
//
//	cfg, err := config.Load("configs/hcbridge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, a := range cfg.Appliances {
//	    fmt.Println(a.ID, a.Host)
//	}
package config
