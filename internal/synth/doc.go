// Package synth is the seed-driven dataset synthesizer behind the coding tasks.
//
// Every generator takes a *Source and draws from it exclusively, so a run is a pure
// function of (seed, parameters). Nothing here performs I/O or reads configuration.
//
// Stages, leaves first:
//   - SampleClusters picks k well separated (mean, spread) pairs in a value range.
//   - Distribute splits a sample budget over labels with imbalance at most one.
//   - MultiModal draws the per-label normal samples.
//   - Place grows a 3-D point set where each point stays near an accepted anchor.
//   - DrawEntity and Liveability build one compositional record and its score.
//   - Balance assembles a dataset holding a minimum quota of liveable entities.
//
// Budget exhaustion is reported with ErrClusterExhausted or ErrConstraintExhausted;
// invalid arguments with ErrInvalidParam.
package synth
