// Package config handles loading and validating Loop Logic Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Capacity defaults follow the commissioning conventions for addressable
// loops: 25 devices per circuit, addresses up to 250, a 7.0 unit current
// ceiling, and a 0.80 safe-capacity threshold. The engine behaves
// identically whether these are explicit in the file or defaulted here.
//
// Security Considerations:
//   - Sensitive values (broker passwords, tokens) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
