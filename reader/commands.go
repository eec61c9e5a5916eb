package reader

import (
	"fmt"

	cli "github.com/urfave/cli/v3"
)

var sourceHelp = fmt.Sprintf(`%s
SOURCE:
    either path to EPUB file or id of a book imported into the library (see "books list")

CHAPTER:
    0 based chapter index as printed by "chapters" command
`, cli.CommandHelpTemplate)

// Commands returns command line interface of the reader.
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "books",
			Usage: "Manages library of imported books",
			Commands: []*cli.Command{
				{
					Name:      "add",
					Usage:     "Imports EPUB file(s): copies book, extracts cover and images",
					Action:    AddBooks,
					ArgsUsage: "FILE...",
				},
				{
					Name:   "list",
					Usage:  "Lists imported books, most recently opened first",
					Action: ListBooks,
				},
			},
		},
		{
			Name:               "chapters",
			Usage:              "Lists chapters of the book",
			Action:             ListChapters,
			ArgsUsage:          "SOURCE",
			CustomHelpTemplate: sourceHelp,
		},
		{
			Name:   "render",
			Usage:  "Renders chapter with its bookmarks highlighted into XHTML page",
			Action: Render,
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "release", Usage: "leave rendering mode before writing page"},
				&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "overwrite existing page"},
			},
			ArgsUsage: "SOURCE CHAPTER [DESTINATION]",
			CustomHelpTemplate: sourceHelp + `
DESTINATION:
    directory to write page to, file name is derived from configured template
    if absent - current working directory
`,
		},
		{
			Name:  "mark",
			Usage: "Manages bookmarks",
			Commands: []*cli.Command{
				{
					Name:   "add",
					Usage:  "Adds bookmark to the chapter",
					Action: AddMark,
					Flags: []cli.Flag{
						&cli.IntFlag{Name: "sentence", Aliases: []string{"s"}, Usage: "bookmark `N`-th sentence of START paragraph"},
					},
					ArgsUsage: "SOURCE CHAPTER START [END]",
					CustomHelpTemplate: sourceHelp + `
START, END:
    PARAGRAPH[:OFFSET], paragraphs start with 1, offset is in characters
    single PARAGRAPH without offset and END bookmarks the whole paragraph
    missing END offset means end of paragraph
`,
				},
				{
					Name:               "list",
					Usage:              "Lists bookmarks of the chapter or of the whole book",
					Action:             ListMarks,
					ArgsUsage:          "SOURCE [CHAPTER]",
					CustomHelpTemplate: sourceHelp,
				},
				{
					Name:               "delete",
					Usage:              "Deletes bookmark",
					Action:             DeleteMark,
					ArgsUsage:          "SOURCE CHAPTER MARK",
					CustomHelpTemplate: sourceHelp,
				},
			},
		},
	}
}
