package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yoanbernabeu/frankenexec/internal/config"
	"github.com/yoanbernabeu/frankenexec/internal/executor"
	"github.com/yoanbernabeu/frankenexec/internal/ssh"
)

// loadConfig reads frankenexec.yaml, resolves its named target against the
// global targets file and validates the result
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}

	if cfg.Executor.IsRemote() {
		global, err := config.LoadGlobalConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load global config: %w", err)
		}
		if err := cfg.ResolveTarget(global); err != nil {
			return nil, err
		}
	}

	if errs := config.Validate(cfg); errs.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", errs)
	}

	if cfg.Debug && !logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.SetLevel(logrus.DebugLevel)
	}
	return cfg, nil
}

// buildExecutor assembles the executor described by cfg. Decorators are
// applied innermost first: postfix, then prefix, then timeout.
func buildExecutor(cfg *config.Config, log *logrus.Entry) (executor.Executor, error) {
	e := cfg.Executor
	opts := []executor.Option{executor.WithLogger(log)}

	var exec executor.Executor
	switch e.Type {
	case config.TypeLocal:
		exec = executor.NewLocal(opts...)
	case config.TypeCompileOnly:
		exec = executor.NewCompileOnly()
	case config.TypeCollect:
		exec = executor.NewCollectBinaries(e.TestExecRoot, e.TargetDir, opts...)
	case config.TypeSSH, config.TypeSSHNFS:
		transport, err := buildTransport(e, log)
		if err != nil {
			return nil, err
		}
		exec = executor.NewRemote(transport, append(opts, executor.WithKeepOnFailure(e.KeepsFailedRuns()))...)
	default:
		return nil, fmt.Errorf("unknown executor type: %s", e.Type)
	}

	if len(e.Postfix) > 0 {
		exec = executor.NewPostfix(e.Postfix, exec)
	}
	if len(e.Prefix) > 0 {
		exec = executor.NewPrefix(e.Prefix, exec)
	}
	if e.Timeout > 0 {
		exec = executor.NewTimeout(e.Timeout, exec)
	}
	return exec, nil
}

func buildTransport(e config.ExecutorConfig, log *logrus.Entry) (executor.RemoteTransport, error) {
	target := ssh.Target{Host: e.Host, User: e.User, Port: e.Port}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	var remote ssh.Executor
	switch e.Transport {
	case config.TransportOpenSSH, "":
		options := append([]string(nil), e.SSHOptions...)
		if e.KeyPath != "" {
			options = append(options, "-i", e.KeyPath)
		}
		remote = ssh.NewOpenSSH(target, options, nil)
	case config.TransportNative:
		remote = ssh.NewNative(target, e.KeyPath, ssh.WithClientLogger(log))
	default:
		return nil, fmt.Errorf("unknown transport: %s", e.Transport)
	}

	var transport executor.RemoteTransport = ssh.NewTransport(remote)
	if e.Type == config.TypeSSHNFS {
		transport = ssh.NewNFSTransport(transport, e.NFSDir, e.PathInTarget)
	}
	if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		transport = ssh.Traced(transport, log)
	}
	return transport, nil
}
