// Package chunk defines the chunk task data model: the intake request, the
// linear lifecycle state machine, and the transcript segments that flow
// between pipeline stages.
package chunk
