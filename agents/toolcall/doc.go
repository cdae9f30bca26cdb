/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package toolcall defines the closed set of tools an agent may invoke and the
// registry that resolves a model-supplied tool name to its handler.
//
// Each tool is identified by a [Kind]. Handlers are built from a typed input
// struct, whose JSON schema is reflected once and used both as the definition
// shown to the model and to validate every invocation before it runs:
//
//	type readInput struct {
//		Filename string `json:"filename" jsonschema:"required"`
//	}
//
//	h := toolcall.MustNew(toolcall.ReadFile, "Read a file",
//		func(ctx context.Context, in readInput) (any, error) {
//			return os.ReadFile(in.Filename)
//		})
//
//	reg, err := toolcall.NewRegistry(h)
//
// Registration is static: the registry is assembled once at startup and never
// changes for the lifetime of a run.
package toolcall
