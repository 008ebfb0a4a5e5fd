package mcpserver

// EntryFormatContract describes the on-disk journal entry format that LLM
// consumers should follow when creating or reading entries.
const EntryFormatContract = `# Journal Entry Format Contract

There is at most one entry per calendar day.

## Layout

Entries live below the journal root as ` + "`" + `YYYY/MM/YYYY-MM-DD.md` + "`" + `, e.g.
` + "`" + `2023/03/2023-03-05.md` + "`" + `. The date is taken from the file name, never from
the content. Files with any other name are ignored.

## Structure

` + "```" + `markdown
---
tags:                       # OPTIONAL – YAML list of strings
  - work
  - travel
readme: re-read next year   # OPTIONAL – note for a later look back
---
# March 5, 2023

Free text in standard Markdown.
` + "```" + `

## Rules

1. **The header is mandatory.** The ` + "`" + `---` + "`" + ` lines must be the first thing in
   the file. An empty header is two ` + "`" + `---` + "`" + ` lines.
2. **The heading** is ` + "`" + `# ` + "`" + ` followed by the date spelled out ("March 5, 2023").
3. **Tags** are non-blank strings. Filters match them ignoring case; renames match
   the exact spelling.
4. **Unknown header keys** are preserved when the header is rewritten.
5. **Create, don't overwrite.** Use the ` + "`" + `create_entry` + "`" + ` tool; it refuses to replace
   an existing day.
6. **Encoding** is UTF-8.
`
