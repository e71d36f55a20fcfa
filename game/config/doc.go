// Package config provides configuration loading for the quiz relay server.
//
// The config package handles:
//   - Reading optional .env files
//   - Parsing environment variables into a typed Config
//   - Validating value ranges
//
// Environment Variables:
//
//   - QUIZ_HOST, QUIZ_PORT: listen address (default localhost:8080)
//   - QUIZ_LOG_LEVEL, QUIZ_LOG_PRETTY: logger settings
//   - QUIZ_SEND_BUFFER: outbound frames queued per connection
//   - QUIZ_MAX_MESSAGE_BYTES: largest accepted inbound frame
//   - NGROK_ENABLED, NGROK_AUTHTOKEN (or NGROK_AUTH_TOKEN), NGROK_DOMAIN
//
// Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(cfg.Addr())
//
// Command line flags are applied on top of the loaded Config by the caller
// and should be followed by another Validate call.
package config
