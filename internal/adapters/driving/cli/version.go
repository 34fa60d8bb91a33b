package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

var versionOutput string

// buildInfo is the structured form of the version command.
type buildInfo struct {
	Version string `json:"version" yaml:"version"`
	Go      string `json:"go" yaml:"go"`
	OS      string `json:"os" yaml:"os"`
	Arch    string `json:"arch" yaml:"arch"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := parseOutputFormat(versionOutput)
		if err != nil {
			return err
		}
		info := buildInfo{Version: version, Go: runtime.Version(), OS: runtime.GOOS, Arch: runtime.GOARCH}
		if format != outputText {
			return writeStructured(cmd, format, info)
		}
		cmd.Printf("protosmith version %s (%s %s/%s)\n", info.Version, info.Go, info.OS, info.Arch)
		return nil
	},
}

func init() {
	versionCmd.Flags().StringVarP(&versionOutput, "output", "o", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(versionCmd)
}
