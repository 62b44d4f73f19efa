package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/cloud2mesh/internal/export"
	"github.com/banshee-data/cloud2mesh/internal/pipeline"
	"github.com/banshee-data/cloud2mesh/internal/report"
	"github.com/banshee-data/cloud2mesh/internal/stage"
	"github.com/banshee-data/cloud2mesh/internal/storage/sqlite"
)

var (
	flagCloud string
	flagName  string
	flagStage string
	flagOut   string
	flagHTML  string
	flagPlots string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconstruction pipeline on a point cloud",
	Long: `Run the pipeline on an .asc point cloud, optionally stopping after an
intermediate stage:

  cloud2mesh run --cloud tower.asc                        # full run
  cloud2mesh run --cloud tower.asc --stage centroids      # stop early
  cloud2mesh run --cloud tower.asc --out tower.inp        # export the mesh
  cloud2mesh run --cloud tower.asc --html report.html     # chart overview
  cloud2mesh run --cloud tower.asc --db projects.db       # persist artifacts`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagCloud, "cloud", "", "input .asc point cloud (required)")
	runCmd.Flags().StringVar(&flagName, "name", "", "project name (defaults to the cloud filename)")
	runCmd.Flags().StringVar(&flagStage, "stage", "mesh", "last stage to run: sliced, centroids, polylines, polygons or mesh")
	runCmd.Flags().StringVar(&flagOut, "out", "", "write the mesh as an Abaqus .inp deck")
	runCmd.Flags().StringVar(&flagHTML, "html", "", "write an HTML overview report")
	runCmd.Flags().StringVar(&flagPlots, "plots", "", "write per-slice SVG plots into this directory")
	runCmd.MarkFlagRequired("cloud")
}

func runRun(cmd *cobra.Command, args []string) error {
	target, err := parseStage(flagStage)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name := flagName
	if name == "" {
		name = filepath.Base(flagCloud)
	}
	proj, err := pipeline.New(name, cfg)
	if err != nil {
		return err
	}
	if err := proj.LoadCloud(flagCloud); err != nil {
		return err
	}

	ctx := cmd.Context()
	steps := []struct {
		stage stage.Stage
		run   func() error
	}{
		{stage.Sliced, func() error { return proj.RunSlicer(ctx) }},
		{stage.Centroids, func() error { return proj.RunCentroids(ctx) }},
		{stage.Polylines, func() error { return proj.RunPolylines(ctx) }},
		{stage.Polygons, func() error { return proj.RunPolygons(ctx) }},
		{stage.Mesh, func() error { return proj.RunMesh(ctx) }},
	}
	for _, step := range steps {
		if step.stage > target {
			break
		}
		if err := step.run(); err != nil {
			return fmt.Errorf("stage %s: %w", step.stage, err)
		}
	}

	if err := report.WriteSummary(cmd.OutOrStdout(), proj); err != nil {
		return err
	}

	if flagOut != "" {
		m, _ := proj.Mesh()
		if m == nil {
			return fmt.Errorf("no mesh to export; run with --stage mesh")
		}
		if err := export.SaveINP(flagOut, m); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "mesh written to %s\n", flagOut)
	}
	if flagHTML != "" {
		if err := report.SaveHTML(flagHTML, proj); err != nil {
			return err
		}
	}
	if flagPlots != "" {
		if err := savePlots(flagPlots, proj); err != nil {
			return err
		}
	}

	return persist(proj)
}

func parseStage(s string) (stage.Stage, error) {
	for _, st := range stage.Stages() {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", s)
}

func savePlots(dir string, proj *pipeline.Project) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := 0; i < proj.NumSlices(); i++ {
		path := filepath.Join(dir, fmt.Sprintf("slice_%03d.svg", i))
		if err := report.SaveSlicePlot(path, proj, i); err != nil {
			return err
		}
	}
	return nil
}

// persist writes the project and every computed artifact to the database
// named by --db, when one is configured.
func persist(proj *pipeline.Project) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if store == nil {
		return nil
	}
	defer store.Close()

	id := proj.ID.String()
	if err := store.SaveProject(sqlite.ProjectRecord{
		ID:     id,
		Name:   proj.Name,
		Config: proj.Config(),
	}); err != nil {
		return err
	}
	if c := proj.Cloud(); c != nil {
		if err := store.PutCloud(id, c); err != nil {
			return err
		}
	}
	if err := store.PutSlices(id, proj.Slices()); err != nil {
		return err
	}
	for i := 0; i < proj.NumSlices(); i++ {
		if set := proj.CentroidSet(i); set != nil {
			if err := store.PutCentroids(id, i, set); err != nil {
				return err
			}
		}
		if pls := proj.Polylines(i); pls != nil {
			if err := store.PutPolylines(id, i, pls); err != nil {
				return err
			}
		}
		if err := store.PutStatuses(id, i, proj.StageStatus(i)); err != nil {
			return err
		}
	}
	fmt.Printf("project %s saved to %s\n", id, flagDB)
	return nil
}
