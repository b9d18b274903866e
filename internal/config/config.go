package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the development server.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Dir: The directory holding index.html, dist/, src/ and .certs/.
// - Host: The address the server binds to.
// - Port: The port the server listens on.
// - HealthPort: The port for the monitoring server, 0 (default) disables it.
// - Tunnel: Serve plain HTTP because a tunnel terminates TLS (--ngrok or NGROK_MODE=1).
// - UpstreamURL: The distance API endpoint.
// - UpstreamTimeout: The upper bound for a single upstream call.
type Config struct {
	Env             string        `mapstructure:"env"`              // Env is the current environment: local, development, production.
	Dir             string        `mapstructure:"dir"`              // Dir is the base directory of served files.
	Host            string        `mapstructure:"host"`             // Host is the bind address.
	Port            int           `mapstructure:"port"`             // Port is the listening port.
	HealthPort      int           `mapstructure:"health_port"`      // HealthPort is the monitoring server port.
	Tunnel          bool          `mapstructure:"ngrok"`            // Tunnel selects plaintext-only mode.
	UpstreamURL     string        `mapstructure:"upstream_url"`     // UpstreamURL is the distance API endpoint.
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"` // UpstreamTimeout bounds upstream calls.
}

// MustLoad loads the configuration from the environment, an optional .env file
// and the command line arguments, and returns a Config struct.
func MustLoad(args []string) *Config {
	_ = godotenv.Load()

	flags := pflag.NewFlagSet("geodist", pflag.ContinueOnError)
	flags.Bool("ngrok", false, "serve plain HTTP for an external tunnel")
	flags.String("dir", "", "directory with index.html and assets")
	flags.String("env", "", "environment: local, development, production")
	// Arguments meant for other tools (reloaders, tunnel wrappers) pass through.
	flags.ParseErrorsWhitelist.UnknownFlags = true
	if err := flags.Parse(args); err != nil {
		panic("failed to parse command line flags")
	}

	v := viper.New()
	v.SetEnvPrefix("GEODIST")
	v.AutomaticEnv()

	v.SetDefault("env", "local")
	v.SetDefault("dir", "")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "3000")
	v.SetDefault("health_port", "0")
	v.SetDefault("ngrok", false)
	v.SetDefault("ngrok_mode", "")
	v.SetDefault("upstream_url", "http://vldb.gsi.go.jp/sokuchi/surveycalc/surveycalc/bl2st_calc.pl")
	v.SetDefault("upstream_timeout", "10s")

	_ = v.BindEnv("ngrok_mode", "NGROK_MODE")
	_ = v.BindPFlag("ngrok", flags.Lookup("ngrok"))
	_ = v.BindPFlag("dir", flags.Lookup("dir"))
	_ = v.BindPFlag("env", flags.Lookup("env"))

	port, err := strconv.Atoi(v.GetString("port"))
	if err != nil {
		panic("failed to parse server port from configuration")
	}

	healthPort, err := strconv.Atoi(v.GetString("health_port"))
	if err != nil {
		panic("failed to parse port for monitoring server from configuration")
	}

	timeout, err := time.ParseDuration(v.GetString("upstream_timeout"))
	if err != nil {
		panic("failed to parse upstream timeout from configuration")
	}

	dir := v.GetString("dir")
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			panic("failed to resolve working directory")
		}
	}

	return &Config{
		Env:             v.GetString("env"),
		Dir:             dir,
		Host:            v.GetString("host"),
		Port:            port,
		HealthPort:      healthPort,
		Tunnel:          v.GetBool("ngrok") || v.GetString("ngrok_mode") == "1",
		UpstreamURL:     v.GetString("upstream_url"),
		UpstreamTimeout: timeout,
	}
}
