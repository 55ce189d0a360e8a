package chunk

// ReadyEvent is published on the engine bus when a chunk reaches Ready.
// The rendering collaborator subscribes to consume the mesh; this core never
// reads the payload back.
type ReadyEvent struct {
	Coord Coord
	Mesh  *Mesh
}

// FailedEvent is published when a chunk exhausts its generation attempts.
type FailedEvent struct {
	Coord    Coord
	Attempts int
	Err      error
}
