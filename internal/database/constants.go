package database

// FaceEmbeddingDim is the fixed dimension of face embeddings
// (128 for dlib ResNet descriptors, which the detector sidecar produces).
const FaceEmbeddingDim = 128

// HNSW parameters for the in-memory identify index over person embeddings.
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// HNSWSearchMultiplier requests extra candidates from HNSW so enough
	// survive distance filtering.
	HNSWSearchMultiplier = 3
)
