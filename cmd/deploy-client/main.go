package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/cvmcloud/deploy-client/api"
	"github.com/cvmcloud/deploy-client/cmd/flags"
	"github.com/cvmcloud/deploy-client/deploy"
	"github.com/cvmcloud/deploy-client/manifest"
	"github.com/cvmcloud/deploy-client/netresolve"
	"github.com/cvmcloud/deploy-client/secrets"
	"github.com/cvmcloud/deploy-client/transport"
)

var flagName = &cli.StringFlag{
	Name:     "name",
	Required: true,
	Usage:    "deployment name",
}
var flagImage = &cli.StringFlag{
	Name:     "image",
	Required: true,
	Usage:    "CVM base image",
}
var flagCompose = &cli.StringFlag{
	Name:     "compose",
	Required: true,
	Usage:    "compose manifest location (path, file://, http(s)://, s3:// or ipfs://)",
}
var flagEnvFrom = &cli.StringFlag{
	Name:  "env-from",
	Usage: "secret env source (path, file://, env://KEY1,KEY2 or vault://host:port/mount/path)",
}
var flagVCPU = &cli.IntFlag{
	Name:  "vcpu",
	Usage: "vCPU count, 0 for the service default",
}
var flagMemory = &cli.IntFlag{
	Name:  "memory-mb",
	Usage: "memory in MB, 0 for the service default",
}
var flagDisk = &cli.IntFlag{
	Name:  "disk-gb",
	Usage: "disk size in GB, 0 for the service default",
}
var flagPoolID = &cli.Int64Flag{
	Name:  "pool-id",
	Usage: "pin the execution pool, 0 resolves the first available pool",
}
var flagKMS = &cli.BoolFlag{
	Name:  "kms",
	Usage: "enable the service-side key management integration",
}
var flagGateway = &cli.BoolFlag{
	Name:  "gateway",
	Usage: "enable the service-side TLS gateway",
}
var flagWait = &cli.BoolFlag{
	Name:  "wait",
	Usage: "monitor the deployment until it reaches a terminal state",
}
var flagAppID = &cli.StringFlag{
	Name:     "app-id",
	Required: true,
	Usage:    "application identifier assigned at deployment",
}
var flagAllowRestart = &cli.BoolFlag{
	Name:  "allow-restart",
	Usage: "allow the service to restart the workload to apply the upgrade",
}
var flagInterval = &cli.DurationFlag{
	Name:  "interval",
	Value: deploy.DefaultPollInterval,
	Usage: "delay between status queries",
}
var flagMaxAttempts = &cli.IntFlag{
	Name:  "max-attempts",
	Value: deploy.DefaultMaxAttempts,
	Usage: "status queries before giving up",
}
var flagResolve = &cli.BoolFlag{
	Name:  "resolve",
	Usage: "resolve public URLs to instance IPs after a successful deployment",
}
var flagResolverAddr = &cli.StringFlag{
	Name:  "resolver-addr",
	Value: netresolve.DefaultResolverAddr,
	Usage: "DNS server for --resolve",
}

func main() {
	app := &cli.App{
		Name:  "deploy-client",
		Usage: "submit and monitor confidential workloads",
		Flags: flags.CommonFlags,
		Commands: []*cli.Command{
			{
				Name:  "deploy",
				Usage: "submit a new confidential workload",
				Flags: []cli.Flag{
					flagName, flagImage, flagCompose, flagEnvFrom,
					flagVCPU, flagMemory, flagDisk, flagPoolID,
					flagKMS, flagGateway, flagWait,
					flagInterval, flagMaxAttempts,
				},
				Action: runDeploy,
			},
			{
				Name:   "upgrade",
				Usage:  "replace the compose manifest of an existing deployment",
				Flags:  []cli.Flag{flagAppID, flagCompose, flagEnvFrom, flagAllowRestart},
				Action: runUpgrade,
			},
			{
				Name:   "status",
				Usage:  "query the current status of a deployment",
				Flags:  []cli.Flag{flagAppID},
				Action: runStatus,
			},
			{
				Name:   "monitor",
				Usage:  "poll a deployment until it reaches a terminal state",
				Flags:  []cli.Flag{flagAppID, flagInterval, flagMaxAttempts, flagResolve, flagResolverAddr},
				Action: runMonitor,
			},
			{
				Name:   "pools",
				Usage:  "list execution pools",
				Action: runPools,
			},
			{
				Name:   "whoami",
				Usage:  "show the account the API key belongs to",
				Action: runWhoami,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient(cCtx *cli.Context, log *slog.Logger) *deploy.Client {
	tc := transport.NewClient(&transport.Config{
		BaseURL: cCtx.String(flags.ServerAddrFlag.Name),
		APIKey:  cCtx.String(flags.APIKeyFlag.Name),
		Log:     log,
	})
	return deploy.NewClient(tc)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func loadEnvVars(ctx context.Context, cCtx *cli.Context, log *slog.Logger) ([]api.EnvVar, error) {
	uri := cCtx.String(flagEnvFrom.Name)
	if uri == "" {
		return nil, nil
	}
	return secrets.Load(ctx, uri, log)
}

func runDeploy(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	ctx, stop := signalContext()
	defer stop()

	composeFile, err := manifest.NewSourceFactory(log).Fetch(ctx, cCtx.String(flagCompose.Name))
	if err != nil {
		return fmt.Errorf("could not fetch compose manifest: %w", err)
	}

	envVars, err := loadEnvVars(ctx, cCtx, log)
	if err != nil {
		return fmt.Errorf("could not load secret env: %w", err)
	}

	client := newClient(cCtx, log)
	submitter := deploy.NewSubmitter(client, log)

	deployment, err := submitter.Submit(ctx, &deploy.WorkloadSpec{
		Name:           cCtx.String(flagName.Name),
		Image:          cCtx.String(flagImage.Name),
		ComposeFile:    composeFile,
		VCPU:           cCtx.Int(flagVCPU.Name),
		MemoryMB:       cCtx.Int(flagMemory.Name),
		DiskGB:         cCtx.Int(flagDisk.Name),
		KMSEnabled:     cCtx.Bool(flagKMS.Name),
		GatewayEnabled: cCtx.Bool(flagGateway.Name),
		PoolID:         cCtx.Int64(flagPoolID.Name),
		EnvVars:        envVars,
	})
	if err != nil {
		return err
	}

	if !cCtx.Bool(flagWait.Name) {
		return printJSON(deployment)
	}

	log.Info("deployment accepted, monitoring", "app_id", deployment.AppID)
	result, err := monitorDeployment(ctx, cCtx, client, deployment.AppID, log)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runUpgrade(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	ctx, stop := signalContext()
	defer stop()

	composeFile, err := manifest.NewSourceFactory(log).Fetch(ctx, cCtx.String(flagCompose.Name))
	if err != nil {
		return fmt.Errorf("could not fetch compose manifest: %w", err)
	}

	envVars, err := loadEnvVars(ctx, cCtx, log)
	if err != nil {
		return fmt.Errorf("could not load secret env: %w", err)
	}

	client := newClient(cCtx, log)
	submitter := deploy.NewSubmitter(client, log)

	resp, err := submitter.Upgrade(ctx, cCtx.String(flagAppID.Name), &deploy.UpgradeSpec{
		ComposeFile:  composeFile,
		EnvVars:      envVars,
		AllowRestart: cCtx.Bool(flagAllowRestart.Name),
	})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runStatus(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	ctx, stop := signalContext()
	defer stop()

	status, err := newClient(cCtx, log).GetStatus(ctx, cCtx.String(flagAppID.Name))
	if err != nil {
		return err
	}
	return printJSON(status)
}

func runMonitor(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	ctx, stop := signalContext()
	defer stop()

	client := newClient(cCtx, log)
	result, err := monitorDeployment(ctx, cCtx, client, cCtx.String(flagAppID.Name), log)
	if err != nil {
		return err
	}

	if cCtx.Bool(flagResolve.Name) && result.Outcome == deploy.OutcomeSucceeded && result.Snapshot != nil {
		resolver := &netresolve.Resolver{Addr: cCtx.String(flagResolverAddr.Name)}
		resolved := resolver.ResolveURLs(result.Snapshot.PublicURLs)
		return printJSON(struct {
			*deploy.MonitorResult
			ResolvedURLs map[string][]string `json:"resolved_urls"`
		}{result, resolved})
	}
	return printJSON(result)
}

func monitorDeployment(ctx context.Context, cCtx *cli.Context, client *deploy.Client, appID string, log *slog.Logger) (*deploy.MonitorResult, error) {
	poller := deploy.NewPoller(client, log)
	return poller.Monitor(ctx, appID, deploy.MonitorConfig{
		Interval:    cCtx.Duration(flagInterval.Name),
		MaxAttempts: cCtx.Int(flagMaxAttempts.Name),
		Observer:    &logObserver{log: log},
	})
}

func runPools(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	ctx, stop := signalContext()
	defer stop()

	pools, err := newClient(cCtx, log).ListPools(ctx)
	if err != nil {
		return err
	}
	return printJSON(pools)
}

func runWhoami(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	ctx, stop := signalContext()
	defer stop()

	user, err := newClient(cCtx, log).GetUser(ctx)
	if err != nil {
		return err
	}
	return printJSON(user)
}

// logObserver reports monitoring progress through the process logger.
type logObserver struct {
	log *slog.Logger
}

func (o *logObserver) OnStatusChange(oldStatus, newStatus string, _ *api.DeploymentStatus) {
	o.log.Info("deployment status changed", "from", oldStatus, "to", newStatus)
}

func (o *logObserver) OnSuccess(snapshot *api.DeploymentStatus) {
	o.log.Info("deployment is running", "app_id", snapshot.AppID, "public_urls", snapshot.PublicURLs)
}

func (o *logObserver) OnFailure(snapshot *api.DeploymentStatus) {
	o.log.Error("deployment failed", "app_id", snapshot.AppID, "status", snapshot.Status)
}

func (o *logObserver) OnTimeout(snapshot *api.DeploymentStatus) {
	if snapshot != nil {
		o.log.Error("monitoring timed out", "app_id", snapshot.AppID, "last_status", snapshot.Status)
		return
	}
	o.log.Error("monitoring timed out before any status was observed")
}

func (o *logObserver) OnError(attempt int, err error) {
	o.log.Warn("status query failed", "attempt", attempt, "err", err)
}
