package version

import (
	"bytes"
	"fmt"
	"runtime"
	"text/template"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

// Template field labels
const (
	VersionLabel   = "Version:"
	CommitLabel    = "Git commit:"
	BuiltLabel     = "Built:"
	GoVersionLabel = "Go version:"
	OSArchLabel    = "OS/Arch:"
)

var versionTemplate = template.Must(template.New("version").Parse(`
 ` + VersionLabel + `	{{.Version}}
 ` + CommitLabel + `	{{.GitCommit}}
 ` + BuiltLabel + `		{{.BuildTime}}
 ` + GoVersionLabel + `	{{.GoVersion}}
 ` + OSArchLabel + `	{{.Os}}/{{.Arch}}
`))

type versionInfo struct {
	// build-time info
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	// client machine info
	GoVersion string `json:"go_version"`
	Os        string `json:"os"`
	Arch      string `json:"arch"`
}

func currentVersionInfo() *versionInfo {
	return &versionInfo{
		Version:   getVersion(),
		GitCommit: getCommit(),
		BuildTime: getBuildTimeDisplay(),
		GoVersion: runtime.Version(),
		Os:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

func (v *versionInfo) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	if err := versionTemplate.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("template executing error: %w", err)
	}
	return buf.Bytes(), nil
}

func NewVersionCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "version",
		Short: "Display the application version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := currentVersionInfo()

			var (
				out []byte
				err error
			)
			if f := cmd.Flag("json"); f != nil && f.Value.String() == "true" {
				out, err = jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(info, "", "  ")
				out = append(out, '\n')
			} else {
				out, err = info.MarshalText()
			}
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	return cmd
}
