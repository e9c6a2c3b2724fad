// Package config loads and validates TaHoma bridge configuration.
//
// Settings come from three layers, each overriding the last: built-in
// defaults, the YAML file, then TAHOMA_* environment variables. Secrets
// (broker password, InfluxDB token) belong in the environment, not the
// file; the file itself should be mode 0600.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
//
// Configuration is read once at startup; the bridge does not watch the
// file for changes.
package config
