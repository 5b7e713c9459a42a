package runner

// Scenario execution constants
const (
	// DefaultConcurrency is the number of scenario executions kept in flight
	DefaultConcurrency = 5

	// DefaultRetries is the number of retries granted to a failing scenario
	DefaultRetries = 0

	// DefaultRunner is the scenario runner executable
	DefaultRunner = "cucumber-js"

	// Runner command arguments
	FormatFlag       = "--format"
	JSONFormatPrefix = "json:"

	// ArtifactExtension is the file extension of partial report artifacts
	ArtifactExtension = ".json"

	// featuresSegment marks the root of the scenario tree inside a scenario URI
	featuresSegment = "features/"

	// identityDigestBytes is how much of the identity hash goes into an artifact name
	identityDigestBytes = 6

	// outputTailBytes is how much runner output is kept in memory per attempt
	outputTailBytes = 64 * 1024

	// MaxReasonableConcurrency caps the concurrency limit to avoid resource exhaustion
	MaxReasonableConcurrency = 64
)
