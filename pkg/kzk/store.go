// Package kzk specifies the coordination-store interface the core depends
// on (spec §6): a ZooKeeper-like hierarchical KV with persistent,
// persistent-sequential, and watched nodes. It is deliberately thin — the
// real store is an external collaborator, specified here only at its
// interface, grounded on holys-jocko's state-store access pattern
// (state.GetTopic/state.GetPartition) re-expressed as path-based KV rather
// than a raft-backed FSM.
package kzk

import "context"

// Store is the coordination-store contract pkg/kadm's Admin handle depends
// on.
type Store interface {
	Exists(ctx context.Context, path string) (bool, error)
	ReadData(ctx context.Context, path string) ([]byte, error)
	CreatePersistent(ctx context.Context, path string, data []byte) error
	UpdatePersistent(ctx context.Context, path string, data []byte) error
	CreatePersistentSequential(ctx context.Context, pathPrefix string, data []byte) (string, error)
	DeletePathRecursive(ctx context.Context, path string) error

	// Watch registers fn to be called once the data at path next changes.
	// Mirrors ZooKeeper's one-shot watch semantics: the caller re-registers
	// after each fire if it wants to keep watching.
	Watch(ctx context.Context, path string, fn func()) error
}

// ErrNoNode is returned by ReadData/UpdatePersistent/DeletePathRecursive
// when path does not exist.
type ErrNoNode struct{ Path string }

func (e ErrNoNode) Error() string { return "kzk: no node at " + e.Path }

// ErrNodeExists is returned by CreatePersistent when path already exists.
type ErrNodeExists struct{ Path string }

func (e ErrNodeExists) Error() string { return "kzk: node exists at " + e.Path }
