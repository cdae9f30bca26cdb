/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package gemini implements model.Client on the Google GenAI SDK, against either
the Gemini API or Vertex AI.

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
	    Project:  projectID,
	    Location: region,
	    Backend:  genai.BackendVertexAI,
	})

	mc, err := gemini.New(client, gemini.WithModel("gemini-2.5-pro"))

Gemini function calls may arrive without an ID. The client assigns one so
tool results can be matched back to the call that produced them, and resolves
the function name of every tool result from the call that precedes it in the
history.

When the model produces a malformed function call the client asks it once to
try again before returning the response.
*/
package gemini
