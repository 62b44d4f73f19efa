// Package pipeline is the composition root of the reconstruction pipeline.
// It owns the project state: the loaded cloud, the slice partition, every
// per-slice artifact (centroids, polylines, polygons), the stage graph and
// the generated mesh.
//
// Dependency rule: pipeline imports the stage packages (slicer, centroid,
// trace, polygon, mesh); they never import pipeline or each other's
// artifacts beyond their direct input type. Stage packages are pure
// functions over their input; all sequencing, freshness bookkeeping and
// parallelism lives here.
//
// Stages after slicing run per slice and in parallel, bounded by the
// configured worker count. One slice failing or coming back empty never
// stops the others; its findings are recorded on the stage graph and in the
// criticality list instead.
package pipeline
