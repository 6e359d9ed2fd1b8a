package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shaderlab/internal/diagfmt"
	"shaderlab/internal/shader"
	"shaderlab/internal/shader/naga"
	"shaderlab/internal/source"
	"shaderlab/internal/template"
)

var translateCmd = &cobra.Command{
	Use:   "translate [flags] <file.wgsl>",
	Short: "Compile a WGSL shader document and print it as GLSL 3.30",
	Long: `Assemble the user region of a WGSL document, compile it in-process and
print the selected stage translated to desktop GLSL. Compile errors are
reported like check does.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	translateCmd.Flags().String("stage", "fragment", "stage to translate (vertex|fragment)")
	translateCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stageName, err := cmd.Flags().GetString("stage")
	if err != nil {
		return fmt.Errorf("failed to get stage flag: %w", err)
	}
	var stage shader.Stage
	switch strings.ToLower(stageName) {
	case "vertex":
		stage = shader.StageVertex
	case "fragment":
		stage = shader.StageFragment
	default:
		return fmt.Errorf("unknown stage %q (expected vertex|fragment)", stageName)
	}

	tpl := template.MustFor(template.DialectWGSL)
	f, err := source.Load(args[0])
	if err != nil {
		return err
	}
	frag, ok := template.ExtractRegion(template.Document(f.Text()))
	if !ok || strings.TrimSpace(string(frag)) == "" {
		if frag, err = cfg.DefaultFragment(); err != nil {
			return err
		}
		if frag == "" {
			frag = tpl.DefaultFragment()
		}
	}

	src := string(tpl.Assemble(frag))
	if stage == shader.StageVertex {
		src = tpl.VertexSource()
	}

	backend := naga.New(naga.Options{Validate: true})
	adapter := shader.NewAdapter(backend)
	res := adapter.Compile(stage, src)
	if !res.OK() {
		in := compileFailureInput(args[0], tpl, frag, res.Log, cfg.Diagnostics.Max)
		in.Err = res.Err()
		diagfmt.Pretty(cmd.OutOrStdout(), in, template.DialectWGSL, diagfmt.PrettyOpts{Color: useColor(), Context: 1})
		return &exitError{code: 1}
	}
	defer adapter.ReleaseShader(res.Handle)

	glsl, err := backend.Translate(res.Handle)
	if err != nil {
		return err
	}
	return writeOutput(cmd, glsl)
}
