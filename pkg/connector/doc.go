// Package connector groups the connector protocol and the connectors that
// ship with hvol.
//
// # Layout
//
//   - core: the Class descriptor and the callback interfaces a connector
//     implements, one per object kind, plus the argument structs they share.
//   - registry: counted connector handles. Registering a class whose name or
//     value is already known returns the existing handle with one more
//     reference.
//   - plugin: the catalog of loadable connectors. Built-in connectors add
//     themselves from init; RegisterByName and RegisterByValue load from it.
//   - native: the terminal connector. Files live in memory and may be
//     snapshotted to JSON on flush.
//   - passthru: a stacking connector. It forwards every callback to the
//     connector beneath it and compresses dataset and attribute payloads.
//
// # Writing a connector
//
// A connector is a *core.Class. Fill in the identity fields and the callback
// tables for the object kinds the connector handles; a nil table makes the
// library report a protocol error for that kind without calling anything:
//
//	cls := &core.Class{
//		ProtocolVersion: core.ProtocolVersion,
//		Name:            "memo",
//		Value:           400,
//		Version:         1,
//		File:            memoFiles{},
//	}
//	id, err := lib.RegisterConnector(ctx, cls, nil)
//
// Values up to core.ValueMaxReserved belong to built-in connectors. Info
// Copy and Free come as a pair, as do the wrap context callbacks; the
// registry rejects a class that provides only one of them.
package connector
