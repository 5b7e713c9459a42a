package runner

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/ethereum-optimism/infra/op-parallel/types"
)

var artifactNameReplacer = strings.NewReplacer(":", "_", ".", "_")

// ArtifactName returns the file name stem of the partial report written by one attempt: a
// readable form of the scenario identity, a digest of the full identity and the retry marker
// for retries. The readable part drops everything up to the last features/ folder and is
// not unique on its own; the digest keeps names of distinct identities apart.
func ArtifactName(ref types.ScenarioRef) string {
	id := strings.ReplaceAll(ref.ID(), `\`, "/")
	if idx := strings.LastIndex(id, featuresSegment); idx >= 0 {
		id = id[idx+len(featuresSegment):]
	}
	return artifactNameReplacer.Replace(id) + "_" + identityDigest(ref) + ref.RetrySuffix()
}

// ArtifactPath returns where the attempt described by ref writes its partial report. Paths
// are unique per (identity, attempt) so in-flight executions never share an artifact.
func ArtifactPath(tempDir string, ref types.ScenarioRef) string {
	return filepath.Join(tempDir, filepath.FromSlash(ArtifactName(ref)+ArtifactExtension))
}

func identityDigest(ref types.ScenarioRef) string {
	sum := sha256.Sum256([]byte(ref.ID()))
	return hex.EncodeToString(sum[:identityDigestBytes])
}
