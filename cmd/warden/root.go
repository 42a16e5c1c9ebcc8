package main

import (
	"github.com/spf13/cobra"

	"github.com/zeusync/warden/internal/core/detection"
	"github.com/zeusync/warden/internal/core/sequence"
	"github.com/zeusync/warden/internal/detections/ascent"
	"github.com/zeusync/warden/internal/detections/reach"
	"github.com/zeusync/warden/internal/injector"
)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "warden",
		Short: "Heuristic misbehavior detection for game servers",
		Long: `warden runs the bundled detections against recorded player events.

Configuration is read from an optional YAML file. Environment variables prefixed
WARDEN_ override it, with "__" separating nested keys (WARDEN_ENGINE__WORKERS=4).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	root.AddCommand(
		newReplayCommand(&configPath),
		newDetectionsCommand(&configPath),
	)
	return root
}

// bootstrap builds the engine and installs the bundled detections.
func bootstrap(configPath string, clock sequence.Clock, resolver detection.Resolver) (*injector.Engine, func(), error) {
	engine, cleanup, err := injector.InitializeEngine(configPath, clock, resolver)
	if err != nil {
		return nil, nil, err
	}

	modules := []detection.Module{
		ascent.New(engine.Config.Detection(ascent.ID), engine.Logger),
		reach.New(engine.Config.Detection(reach.ID), engine.Logger),
	}
	for _, mod := range modules {
		if err := engine.Manager.Install(mod); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return engine, cleanup, nil
}
