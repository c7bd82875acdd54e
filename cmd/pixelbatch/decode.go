package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pixelbatch/internal/pngmeta"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode FILE...",
		Short: "Print the generation metadata embedded in PNG files",
		Long: `Reads each PNG and prints its embedded metadata as indented JSON.
With several files the output is an object keyed by path.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDecode,
	}
}

func runDecode(cmd *cobra.Command, args []string) error {
	results := make(map[string]map[string]any, len(args))
	for _, path := range args {
		img, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		results[path] = pngmeta.Decode(img).Map()
	}

	var out any = results
	if len(args) == 1 {
		out = results[args[0]]
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
