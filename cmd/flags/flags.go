// Package flags holds the CLI flag definitions and logger setup shared by
// the deploy-client commands.
package flags

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/cvmcloud/deploy-client/common"
)

// SetupLogger builds the process logger from the common logging flags.
func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
	})

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

var ServerAddrFlag = &cli.StringFlag{
	Name:    "server-addr",
	Value:   "https://cloud.cvmcloud.example.com",
	EnvVars: []string{"CVM_SERVER_ADDR"},
	Usage:   "Provisioning API base URL",
}

var APIKeyFlag = &cli.StringFlag{
	Name:     "api-key",
	Required: true,
	EnvVars:  []string{"CVM_API_KEY"},
	Usage:    "API key for the provisioning service",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "deploy-client",
	Usage: "add 'service' tag to logs",
}

// CommonFlags apply to every command.
var CommonFlags = []cli.Flag{
	ServerAddrFlag,
	APIKeyFlag,
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}
