/*
Package compiler runs the compilation pipeline.

Process of compilation

	Shader Description (yaml) ->
		parse ->
	Abstract Syntax Tree (ast) ->
		check, lower (front + flow + mask) ->
	Predicated Vector Code (ir) ->
		list (back) ->
	Listing Text

	Predicated Vector Code (ir) ->
		eval ->
	Lane Outputs <- compare -> Reference Lane Outputs (scalar)
*/
package compiler
