package mcpserver

// NoteFormat describes the Markdown notes produced from a Keep export, for
// LLM consumers reading them through the tools above.
const NoteFormat = `# keepmd Converted Note Format

Every Keep note becomes one Markdown file in the converted-notes folder.

## Structure

` + "```" + `markdown
---
title: "Shopping list"            # note title, or the creation time when Keep had none
created: 2015-01-01T00:00:00Z     # creation time
edited: 2015-01-02T10:00:00Z      # last user edit
tags:                             # derived tags, see below
  - "groceries"
  - "Pinned"
  - "created-2015"
pinned: true
archived: false
trashed: false
source: "Shopping list.json"      # export file the note came from
---

# Shopping list

Body text, then the checklist:

- [x] milk
- [ ] eggs

![](images/photo.png)

#groceries #Pinned #created-2015
` + "```" + `

## Tags

Tags fall into three supertags:

1. **Category**: slugified Keep labels, plus ` + "`" + `Pinned` + "`" + ` and ` + "`" + `Trashed` + "`" + `.
   Notes without any Category tag are listed under ` + "`" + `Uncategorized` + "`" + ` in the
   tag TOC.
2. **Color**: ` + "`" + `color-<name>` + "`" + `, lowercased, omitted for the default color.
3. **Year**: ` + "`" + `created-<YYYY>` + "`" + `, always present.

## Attachments

- Images live in ` + "`" + `images/` + "`" + `, every other attachment in ` + "`" + `assets/` + "`" + `.
- Notes reference them with paths relative to the converted-notes folder.

## Tag TOC

The ` + "`" + `keepmd://tag-toc` + "`" + ` resource groups every note by supertag, then by tag, with
supertags and tags sorted by name and notes in conversion order.
`
