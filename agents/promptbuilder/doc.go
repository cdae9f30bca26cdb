/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package promptbuilder assembles the prompts sent to the model from templates
with {{name}} placeholders.

Templates are untyped string constants in the source, so only developers
write them. Values reach a template through bindings:

	p := promptbuilder.MustNewPrompt(`Repository:
	{{repository}}

	Issue:
	{{issue}}`)
	p = p.MustBindYAML("repository", repo)
	p = p.MustBindFenced("issue", issueText)
	text, err := p.Build()

  - BindStringLiteral takes developer-controlled constants.
  - BindJSON, BindYAML and BindXML encode structured data.
  - BindFenced wraps free text, such as an issue body, in a code fence longer
    than any backtick run it contains.

Substitution is a single pass, so a bound value containing {{other}} is never
expanded. Binding returns a new Prompt and leaves the receiver untouched.
Build fails while any placeholder is unbound.
*/
package promptbuilder
