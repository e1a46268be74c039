package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/vpnkeeper/internal/flagx"
	"github.com/dmitrijs2005/vpnkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "30s" and integer nanoseconds are accepted. Only
// fields present in the file override the defaults.
type JsonConfig struct {
	EndpointAddrGRPC string          `json:"endpoint_addr_grpc"`
	DatabaseDSN      string          `json:"database_dsn"`
	LogLevel         string          `json:"log_level"`
	BotToken         string          `json:"bot_token"`
	TelegramAPIURL   string          `json:"telegram_api_url"`
	ChannelID        string          `json:"channel_id"`
	AdminIDs         []int64         `json:"admin_ids"`
	MaxKeysPerUser   int             `json:"max_keys_per_user"`
	PollTimeout      *timex.Duration `json:"poll_timeout"`
	Workers          int             `json:"workers"`
	ArtifactStore    string          `json:"artifact_store"`
	QRDir            string          `json:"qr_dir"`
	S3RootUser       string          `json:"s3_root_user"`
	S3RootPassword   string          `json:"s3_root_password"`
	S3Bucket         string          `json:"s3_bucket"`
	S3Region         string          `json:"s3_region"`
	S3BaseEndpoint   string          `json:"s3_base_endpoint"`
	VLESS            *VLESS          `json:"vless"`
	Servers          []ServerSeed    `json:"servers"`
}

// parseJson loads the file named by -c/-config into config. Without the flag
// nothing is loaded. A missing or malformed file panics, since the process
// cannot start with a config it was told to use but cannot read.
func parseJson(config *Config) {
	path := flagx.JSONConfigPath()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.BotToken, c.BotToken)
	setString(&config.TelegramAPIURL, c.TelegramAPIURL)
	setString(&config.ChannelID, c.ChannelID)
	setString(&config.ArtifactStore, c.ArtifactStore)
	setString(&config.QRDir, c.QRDir)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.AdminIDs != nil {
		config.AdminIDs = c.AdminIDs
	}
	if c.MaxKeysPerUser > 0 {
		config.MaxKeysPerUser = c.MaxKeysPerUser
	}
	if c.PollTimeout != nil {
		config.PollTimeout = c.PollTimeout.Duration
	}
	if c.Workers > 0 {
		config.Workers = c.Workers
	}
	if c.VLESS != nil {
		config.VLESS = *c.VLESS
	}
	if c.Servers != nil {
		config.Servers = c.Servers
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
