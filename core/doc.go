// Package core defines the shared domain types of the workflow engine: the
// declarative graph model, the conversation transcript, execution records,
// and the capability interfaces (ExecutionStore, Retriever) the engine is
// composed from.
package core
