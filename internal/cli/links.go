package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nhle/mailissue/internal/store"
	"github.com/nhle/mailissue/internal/theme"
)

func newLinksCmd(a *app) *cobra.Command {
	var (
		project int
		issue   int
		query   string
		limit   int
		output  string
	)
	cmd := &cobra.Command{
		Use:   "links",
		Short: "List the issues created from messages",
		Example: `  mailissue links --project 3
  mailissue links --query outage --output yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := store.LinkFilter{SortDesc: true, Limit: limit}
			if cmd.Flags().Changed("project") {
				filter.ProjectID = &project
			}
			if cmd.Flags().Changed("issue") {
				filter.IssueID = &issue
			}
			if query != "" {
				filter.Query = &query
			}

			st, err := a.store()
			if err != nil {
				return err
			}
			defer st.Close()

			links, err := st.GetLinks(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch output {
			case "yaml":
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(links); err != nil {
					return fmt.Errorf("encoding links: %w", err)
				}
				return enc.Close()
			case "table", "":
			default:
				return fmt.Errorf("unknown output format %q", output)
			}

			if len(links) == 0 {
				fmt.Fprintln(w, theme.HelpStyle.Render("No links recorded"))
				return nil
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
				Headers("ISSUE", "PROJECT", "CREATED", "SUBJECT", "MESSAGE")
			for _, l := range links {
				t.Row(
					"#"+strconv.Itoa(l.IssueID),
					strconv.Itoa(l.ProjectID),
					l.CreatedAt.Local().Format("2006-01-02 15:04"),
					l.Subject,
					l.MessageID,
				)
			}
			fmt.Fprintln(w, t.Render())
			return nil
		},
	}

	cmd.Flags().IntVar(&project, "project", 0, "Only links to this project")
	cmd.Flags().IntVar(&issue, "issue", 0, "Only links to this issue")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only links whose subject contains this text")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of links")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, yaml)")
	return cmd
}
