// Package main provides the cloud2mesh CLI: point-cloud slicing, centroid
// extraction, polyline tracing, polygon assembly and mesh generation, with
// project persistence and diagnostics reports.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/cloud2mesh/internal/params"
	"github.com/banshee-data/cloud2mesh/internal/storage/sqlite"
	"github.com/banshee-data/cloud2mesh/internal/version"
)

var (
	flagConfig string
	flagDB     string
)

var rootCmd = &cobra.Command{
	Use:     "cloud2mesh",
	Short:   "cloud2mesh - reconstruct FE meshes from point clouds",
	Long:    `cloud2mesh slices a 3D point cloud into horizontal bands, reduces each band to wall centerlines, assembles closed polygons and extrudes them into a hexahedral finite-element mesh.`,
	Version: version.String(),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a JSON parameter file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "project database path (empty disables persistence)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig resolves the parameter set from --config, or defaults.
func loadConfig() (*params.Config, error) {
	if flagConfig == "" {
		return params.Default(), nil
	}
	return params.Load(flagConfig)
}

// openStore opens the project database named by --db, or returns nil when
// persistence is disabled.
func openStore() (*sqlite.Store, error) {
	if flagDB == "" {
		return nil, nil
	}
	s, err := sqlite.Open(flagDB)
	if err != nil {
		return nil, err
	}
	if err := s.MigrateUp(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
