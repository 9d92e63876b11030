// Package config handles loading and validating the operator configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with OPERATOR_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - MQTT passwords and InfluxDB tokens should be set via environment variables
//     (a .env file is loaded by the command before Load runs)
//   - The console session state file grants access to the console; it is
//     written with 0600 and must not be committed
//
// Usage:
//
//	cfg, err := config.Load(config.ResolvePath(flagPath))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Console.BaseURL)
package config
