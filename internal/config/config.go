// Package config holds the planner's construction-time options (spec.md
// §6). Every field follows the teacher's "zero value means use the
// default" convention (main.go buildPRMGraphHandler: `if req.NumSamples ==
// 0 { req.NumSamples = 500 }`), applied here via WithDefaults.
package config

// Config is the set of options recognised at planner construction.
type Config struct {
	// MapSize is the side length of the square grid, in metres.
	MapSize float64
	// Resolution is metres per cell.
	Resolution float64
	// RobotDiameter is the C-space dilation diameter, in metres.
	RobotDiameter float64
	// Density is MaxDegree: the max neighbours a roadmap vertex may have.
	Density int
	// MaxEdgeLen is the max Euclidean length of an admitted edge, in metres.
	MaxEdgeLen float64
	// MaxSamples bounds the sampling loop per build call.
	MaxSamples int
	// MaxRetries bounds the outer build retries when a build returns an
	// empty path.
	MaxRetries int
	// DispersionRadius is the minimum allowed distance between any two
	// sampled (non-start/goal) vertices (spec.md §9 open question,
	// resolved in SPEC_FULL.md: true dispersion rejection). Zero means
	// "derive from Resolution" (2x resolution) in WithDefaults.
	DispersionRadius float64
}

// Defaults per spec.md §6.
const (
	DefaultMapSize       = 20.0
	DefaultResolution    = 0.1
	DefaultRobotDiameter = 0.2
	DefaultDensity       = 5
	DefaultMaxEdgeLen    = 2.5
	DefaultMaxSamples    = 1000
	DefaultMaxRetries    = 3
)

// WithDefaults returns a copy of c with every zero-valued field replaced by
// its spec.md §6 default.
func (c Config) WithDefaults() Config {
	if c.MapSize == 0 {
		c.MapSize = DefaultMapSize
	}
	if c.Resolution == 0 {
		c.Resolution = DefaultResolution
	}
	if c.RobotDiameter == 0 {
		c.RobotDiameter = DefaultRobotDiameter
	}
	if c.Density == 0 {
		c.Density = DefaultDensity
	}
	if c.MaxEdgeLen == 0 {
		c.MaxEdgeLen = DefaultMaxEdgeLen
	}
	if c.MaxSamples == 0 {
		c.MaxSamples = DefaultMaxSamples
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DispersionRadius == 0 {
		c.DispersionRadius = 2 * c.Resolution
	}
	return c
}
