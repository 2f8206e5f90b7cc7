package mcpserver

// NoteFormatContract describes the knowledge note format that LLM consumers
// should follow when writing notes into the source tree.
const NoteFormatContract = `# Catalyst Note Format Contract

A knowledge note is a Markdown file with an optional header block. Notes
without a header are valid: they are classified from their path, file name
and content when synced.

## Structure

` + "```" + `markdown
---
title: Retry budgets                # shown in the vault; derived when missing
category: code                      # prompt | code | concept | resource | command | project_log
subcategory: go                     # OPTIONAL – folder below the category
tags: [resilience, go]              # list or comma-separated string
complexity: intermediate            # beginner | intermediate | advanced
quality: medium                     # low | medium | high | experimental
status: draft                       # draft | tested | production | deprecated
project: payments                   # OPTIONAL – routes into the project subtree
created: 2025-01-15                 # OPTIONAL – ISO-8601 date or datetime
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **The header fences come first.** ` + "`" + `---` + "`" + ` must be the first line of the
   file and a second ` + "`" + `---` + "`" + ` line closes the block.
2. **A header with a valid ` + "`" + `category` + "`" + ` is used as is.** Fields you set always win
   over classified values; missing subcategory, complexity and quality are filled in.
3. **Titles** fall back to the first level-one heading, then the first non-empty
   line (truncated to 50 characters), then "Untitled".
4. **Tags** are lowercase; whitespace becomes ` + "`" + `-` + "`" + ` and a leading ` + "`" + `#` + "`" + ` is dropped.
   Namespaced tags such as ` + "`" + `claude/opus` + "`" + ` are allowed.
5. **Hashtags** written in the body (` + "`" + `#retries` + "`" + `) are collected as tags.
6. **File names** end with ` + "`" + `.md` + "`" + `; the vault copy keeps the same name.
7. **Encoding** is UTF-8.
8. **Deleting a source note never deletes the vault copy.**

## Example

` + "```" + `markdown
---
title: Deploy checklist
category: code
subcategory: shell
tags:
  - deploy
  - bash
status: tested
---

# Deploy checklist

Run ` + "`" + `make release` + "`" + ` and watch the rollout. #deploy
` + "```" + `
`
