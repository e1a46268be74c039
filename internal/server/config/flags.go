package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/vpnkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-t string   Telegram bot token
//	-ch string  gating channel id (e.g., "@guardtunnel")
//	-admins     comma-separated admin Telegram ids
//	-m int      max live keys per user
//	-pt int     long-poll timeout, seconds
//	-w int      concurrent update handlers
//	-l string   log level
//	-qs string  artifact store ("file" or "s3")
//	-q string   QR directory for the file store
//	-u/-p/-b/-g/-e  S3 user, password, bucket, region, base endpoint
//
// Only these flags are parsed; os.Args is filtered with flagx.FilterArgs so
// the -c config flag does not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-t", "-ch", "-admins", "-m", "-pt", "-w", "-l", "-qs", "-q",
		"-u", "-p", "-b", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port of the health endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.BotToken, "t", config.BotToken, "telegram bot token")
	fs.StringVar(&config.ChannelID, "ch", config.ChannelID, "channel users must join")

	admins := flagx.Int64List(config.AdminIDs)
	fs.Var(&admins, "admins", "comma-separated admin telegram ids")

	fs.IntVar(&config.MaxKeysPerUser, "m", config.MaxKeysPerUser, "max live keys per user")
	pollTimeout := fs.Int("pt", int(config.PollTimeout.Seconds()), "long-poll timeout (in seconds)")
	fs.IntVar(&config.Workers, "w", config.Workers, "concurrent update handlers")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.StringVar(&config.ArtifactStore, "qs", config.ArtifactStore, "QR artifact store: file or s3")
	fs.StringVar(&config.QRDir, "q", config.QRDir, "QR directory for the file store")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AdminIDs = []int64(admins)
	config.PollTimeout = time.Duration(*pollTimeout) * time.Second
}
