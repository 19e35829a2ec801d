package config

import "time"

type Config struct {
	KnxCfg   *KnxConfig
	MqttCfg  *MqttConfig
	APICfg   *APIConfig
	LogLevel string
}

type KnxConfig struct {
	// BaseURL of the vendor visu, e.g. https://smarthome.example.com
	BaseURL       string
	MappingsPath  string
	SkipTLSVerify bool
	// RequestTimeout bounds a single control or page request.
	RequestTimeout time.Duration
	// LoginTimeout bounds one full browser re-authentication, including the
	// redirect polling. Interactive logins can legitimately take minutes.
	LoginTimeout time.Duration
	Headless     bool
}

type MqttConfig struct {
	Host     string
	Username string
	Password string
}

type APIConfig struct {
	Addr string
	// TokenHash is the bcrypt hash of the API bearer token. Empty disables
	// authentication.
	TokenHash string
}
