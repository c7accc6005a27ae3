package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag, envFileFlag, videoFlag, indexFlag string

	ctx := newCommandContext(&configFlag, &envFileFlag, &videoFlag, &indexFlag)

	rootCmd := &cobra.Command{
		Use:           "lecture_builder",
		Short:         "Build lecture material from indexed videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.syncLogger()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path (YAML)")
	flags.StringVar(&envFileFlag, "env-file", "", "Dotenv file path (default .env)")
	flags.StringVar(&videoFlag, "video", "", "Twelve Labs video id")
	flags.StringVar(&indexFlag, "index", "", "Twelve Labs index id")

	rootCmd.AddCommand(newIndexesCommand(ctx))
	for _, cmd := range newFeatureCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newQuizCommand(ctx))
	rootCmd.AddCommand(newStreamCommand(ctx))
	rootCmd.AddCommand(newBuildCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))

	return rootCmd
}
